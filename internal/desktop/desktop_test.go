package desktop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoop(t *testing.T) {
	var d Desktop = Noop{}
	_, ok := d.Frontmost()
	assert.False(t, ok)
	assert.False(t, d.CanSynthesizeInput())
	assert.NoError(t, d.Activate(App{ID: "1"}))
	assert.ErrorIs(t, d.SendPaste(), ErrUnsupported)
}

func TestAppIsZero(t *testing.T) {
	assert.True(t, App{}.IsZero())
	assert.False(t, App{ID: "42", Name: "Notes"}.IsZero())
}
