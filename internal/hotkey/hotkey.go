// Package hotkey owns the global shortcut that toggles the history panel.
//
// A Dispatcher holds at most one OS registration at a time. Key presses
// reach it through a Registry handle, so several dispatchers may coexist
// in one process, each with its own combination.
package hotkey

import (
	"fmt"
	"log/slog"
	"math/bits"
	"sync"

	"golang.design/x/hotkey"
)

// Config is the persisted shortcut: a platform key code and a modifier
// bit mask. Zero values select the platform default.
type Config struct {
	Key       int `mapstructure:"hotkey-key"`
	Modifiers int `mapstructure:"hotkey-modifiers"`
}

// Combo is a resolved key combination.
type Combo struct {
	Key  hotkey.Key
	Mods []hotkey.Modifier
}

// Resolve applies the defaults to c.
func (c Config) Resolve() Combo {
	combo := Combo{Key: hotkey.KeyV, Mods: defaultModifiers()}
	if c.Key > 0 {
		combo.Key = hotkey.Key(c.Key)
	}
	if c.Modifiers > 0 {
		combo.Mods = splitMask(uint32(c.Modifiers))
	}
	return combo
}

func splitMask(mask uint32) []hotkey.Modifier {
	var mods []hotkey.Modifier
	for mask != 0 {
		bit := uint32(1) << bits.TrailingZeros32(mask)
		mods = append(mods, hotkey.Modifier(bit))
		mask &^= bit
	}
	return mods
}

// Mask folds the modifiers back into a bit mask.
func (c Combo) Mask() int {
	var m int
	for _, mod := range c.Mods {
		m |= int(mod)
	}
	return m
}

func (c Combo) String() string {
	return fmt.Sprintf("key=%#x modifiers=%#x", int(c.Key), c.Mask())
}

// Binding is one OS-level registration.
type Binding interface {
	Keydown() <-chan hotkey.Event
	Unregister() error
}

// Binder performs OS registration.
type Binder interface {
	Bind(c Combo) (Binding, error)
}

// OS binds through golang.design/x/hotkey. On macOS the process must run
// its main function under mainthread.Init.
type OS struct{}

func (OS) Bind(c Combo) (Binding, error) {
	hk := hotkey.New(c.Mods, c.Key)
	if err := hk.Register(); err != nil {
		return nil, err
	}
	return hk, nil
}

// Dispatcher invokes a callback whenever its shortcut is pressed.
type Dispatcher struct {
	binder  Binder
	reg     *Registry
	config  func() Config
	onPress func()
	log     *slog.Logger

	mu        sync.Mutex
	installed bool
	handle    Handle
	active    *Combo
	binding   Binding
	stop      chan struct{}
	done      chan struct{}
}

// NewDispatcher returns a stopped dispatcher. config is read on every
// Start, so Reregister picks up a changed shortcut.
func NewDispatcher(binder Binder, reg *Registry, config func() Config, onPress func()) *Dispatcher {
	return &Dispatcher{
		binder:  binder,
		reg:     reg,
		config:  config,
		onPress: onPress,
		log:     slog.With("component", "hotkey"),
	}
}

// Start registers the configured shortcut. A failure is logged and
// returned; the dispatcher simply stays inactive.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.installed {
		d.handle = d.reg.Add(d.onPress)
		d.installed = true
	}
	if d.binding != nil {
		return nil
	}

	combo := d.config().Resolve()
	b, err := d.binder.Bind(combo)
	if err != nil {
		d.log.Error("failed to register global shortcut", "shortcut", combo, "err", err)
		return fmt.Errorf("register %s: %w", combo, err)
	}
	d.binding = b
	d.active = &combo
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.pump(b.Keydown(), d.handle, d.stop, d.done)

	d.log.Info("global shortcut registered", "shortcut", combo)
	return nil
}

func (d *Dispatcher) pump(keydown <-chan hotkey.Event, h Handle, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case _, ok := <-keydown:
			if !ok {
				return
			}
			d.reg.Dispatch(h)
		}
	}
}

// Stop removes the OS registration. Safe to call when not registered.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.binding == nil {
		return
	}
	close(d.stop)
	<-d.done
	if err := d.binding.Unregister(); err != nil {
		d.log.Warn("failed to unregister global shortcut", "err", err)
	}
	d.binding, d.active = nil, nil
}

// Reregister applies the current configuration.
func (d *Dispatcher) Reregister() error {
	d.Stop()
	return d.Start()
}

// Active returns the registered combination.
func (d *Dispatcher) Active() (Combo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return Combo{}, false
	}
	return *d.active, true
}

// Close stops the dispatcher and releases its registry handle.
func (d *Dispatcher) Close() {
	d.Stop()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.installed {
		d.reg.Remove(d.handle)
		d.installed = false
	}
}
