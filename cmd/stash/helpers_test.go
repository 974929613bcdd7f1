package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/stash/internal/crypto"
	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/hub"
	"go.klb.dev/stash/internal/monitor"
	"go.klb.dev/stash/internal/store"
)

func TestIsContainerID(t *testing.T) {
	assert.True(t, isContainerID("0123456789abcdef"))
	assert.False(t, isContainerID("laptop"))
	assert.False(t, isContainerID("0123456789ABCDEF"))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\t\tc", 10))
	assert.Equal(t, "abcd…", oneLine("abcdefgh", 5))
}

func TestFilterType(t *testing.T) {
	in := []entry.Entry{
		{ID: 1, ContentType: entry.PlainText},
		{ID: 2, ContentType: entry.Image},
		{ID: 3, ContentType: entry.PlainText},
	}
	got := filterType(append([]entry.Entry(nil), in...), "Image")
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Len(t, filterType(in, ""), 3)
}

func TestRetentionDays(t *testing.T) {
	v := viper.New()
	assert.Equal(t, defaultRetentionDays, retentionDays(v))
	v.Set("retention-days", -1)
	assert.Equal(t, defaultRetentionDays, retentionDays(v))
	v.Set("retention-days", 30)
	assert.Equal(t, 30, retentionDays(v))
}

func TestLoadKeyFile(t *testing.T) {
	dir := t.TempDir()
	v := viper.New()
	k1, err := loadKey(v, dir)
	require.NoError(t, err)
	k2, err := loadKey(v, dir)
	require.NoError(t, err)
	assert.Equal(t, *k1, *k2)
	assert.FileExists(t, filepath.Join(dir, keyFileName))

	v.Set("passphrase", "hunter2")
	k3, err := loadKey(v, dir)
	require.NoError(t, err)
	assert.NotEqual(t, *k1, *k3)
}

type recordingPeer struct{ got chan hub.Event }

func (p *recordingPeer) ID() string         { return "rec" }
func (p *recordingPeer) Info() hub.PeerInfo { return hub.PeerInfo{ID: "rec"} }
func (p *recordingPeer) Send(ev hub.Event)  { p.got <- ev }

func TestPublishingStore(t *testing.T) {
	key, err := crypto.DeriveKey("test")
	require.NoError(t, err)
	st, err := store.Open(filepath.Join(t.TempDir(), "stash.db"), key)
	require.NoError(t, err)
	defer st.Close()

	h := hub.New()
	rec := &recordingPeer{got: make(chan hub.Event, 4)}
	h.Register(rec)
	ps := &publishingStore{Store: st, hub: h, source: "laptop"}
	ctx := context.Background()

	id, err := st.SaveText(ctx, entry.PlainText, "hello", "")
	require.NoError(t, err)

	require.NoError(t, ps.Touch(ctx, id))
	ev := <-rec.got
	assert.Equal(t, hub.Touched, ev.Kind)
	assert.Equal(t, "laptop", ev.Source)

	require.NoError(t, ps.Delete(ctx, id))
	ev = <-rec.got
	assert.Equal(t, hub.Deleted, ev.Kind)
	assert.Equal(t, id, ev.ID)

	assert.ErrorIs(t, ps.Delete(ctx, id), store.ErrNotFound)
	assert.Empty(t, rec.got)
}

func TestCaptureEvent(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	ev := captureEvent(monitor.Capture{ID: 4, ContentType: entry.Image, SourceApp: "Preview", At: at})
	assert.Equal(t, hub.Event{Kind: hub.Captured, ID: 4, ContentType: entry.Image, Source: "Preview", At: at.UnixMilli()}, ev)
}
