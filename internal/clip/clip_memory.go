package clip

import "sync"

// Memory is an in-process clipboard. It is the backend for environments
// without a display server (headless Linux servers, containers, etc.) and
// behaves like a real clipboard: every write or clear bumps the counter.
type Memory struct {
	mu    sync.Mutex
	count int64
	text  *string
	image []byte
}

// NewMemory returns an empty in-process clipboard.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "headless (in-memory)" }

func (m *Memory) ChangeCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *Memory) ReadText() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.text == nil {
		return "", false
	}
	return *m.text, true
}

func (m *Memory) ReadImage() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.image) == 0 {
		return nil, false
	}
	return append([]byte(nil), m.image...), true
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	m.text, m.image = nil, nil
	m.count++
	m.mu.Unlock()
	return nil
}

func (m *Memory) WriteText(text string) error {
	m.Put(&text, nil)
	return nil
}

func (m *Memory) WriteImage(png []byte) error {
	m.Put(nil, png)
	return nil
}

// Put replaces the contents with both representations at once, the way an
// application copying rich content offers text and image together.
func (m *Memory) Put(text *string, image []byte) {
	m.mu.Lock()
	m.text = text
	m.image = append([]byte(nil), image...)
	m.count++
	m.mu.Unlock()
}

func (m *Memory) Close() {}
