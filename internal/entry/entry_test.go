package entry

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestTypeFilterCycle(t *testing.T) {
	f := FilterAll
	seen := []TypeFilter{f}
	for range 4 {
		f = f.Next()
		seen = append(seen, f)
	}
	assert.Equal(t, []TypeFilter{FilterAll, FilterPlainText, FilterImage, FilterFilePath, FilterAll}, seen)
}

func TestTypeFilterApply(t *testing.T) {
	in := []Entry{
		{ID: 1, ContentType: PlainText},
		{ID: 2, ContentType: Image},
		{ID: 3, ContentType: FilePath},
		{ID: 4, ContentType: PlainText},
	}

	assert.Equal(t, in, FilterAll.Apply(in))
	assert.Len(t, FilterPlainText.Apply(in), 2)
	assert.Equal(t, int64(2), FilterImage.Apply(in)[0].ID)
	assert.Equal(t, int64(3), FilterFilePath.Apply(in)[0].ID)
	assert.Empty(t, FilterImage.Apply(nil))
}

func TestParseContentType(t *testing.T) {
	assert.Equal(t, FilePath, ParseContentType("FilePath"))
	assert.Equal(t, Image, ParseContentType("Image"))
	assert.Equal(t, RichText, ParseContentType("RichText"))
	assert.Equal(t, PlainText, ParseContentType("whatever"))
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("é", 250)
	assert.Equal(t, 200, len([]rune(Entry{TextContent: strp(long)}.Preview())))
	assert.Equal(t, "hi", Entry{TextContent: strp("hi")}.Preview())
	assert.Equal(t, "[Image]", Entry{ContentType: Image}.Preview())
	assert.Equal(t, "", Entry{ContentType: PlainText}.Preview())
}

func TestCounts(t *testing.T) {
	e := Entry{TextContent: strp("hello world\nsecond line")}
	assert.Equal(t, 23, e.CharCount())
	assert.Equal(t, 4, e.WordCount())
	assert.Equal(t, 2, e.LineCount())
	assert.Equal(t, 0, Entry{}.LineCount())
}

func TestEmptySentinel(t *testing.T) {
	assert.True(t, Empty.IsEmpty())
	assert.False(t, Entry{ID: 0}.IsEmpty())
}

func TestDateHeader(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	assert.Equal(t, "Today", DateHeader(now.Add(-time.Hour), now))
	assert.Equal(t, "Yesterday", DateHeader(now.AddDate(0, 0, -1), now))
	assert.Equal(t, "Mar 1, 2026", DateHeader(time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local), now))
}

func TestDecodeEntries(t *testing.T) {
	got, err := DecodeEntries([]byte(`{"ok":[{"id":7,"content_type":"PlainText","text_content":"x","created_at":1,"first_copied_at":1,"copy_count":2}]}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, int64(2), got[0].CopyCount)

	_, err = DecodeEntries([]byte(`{"error":"Storage not initialized"}`))
	require.EqualError(t, err, "Storage not initialized")
}
