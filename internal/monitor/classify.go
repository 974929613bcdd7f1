package monitor

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"go.klb.dev/stash/internal/entry"
)

// Classify decides whether captured text is a file path. A single-line
// value that expands to an absolute path whose target or parent directory
// exists is a FilePath; everything else is PlainText.
func Classify(text string) entry.ContentType {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.ContainsAny(trimmed, "\r\n") {
		return entry.PlainText
	}
	expanded := expandTilde(trimmed)
	if !filepath.IsAbs(expanded) {
		return entry.PlainText
	}
	if exists(expanded) || exists(filepath.Dir(expanded)) {
		return entry.FilePath
	}
	return entry.PlainText
}

// expandTilde expands "~", "~/rest" and "~user/rest".
func expandTilde(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	name, rest, _ := strings.Cut(p[1:], "/")
	var home string
	if name == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		home = h
	} else {
		u, err := user.Lookup(name)
		if err != nil {
			return p
		}
		home = u.HomeDir
	}
	return filepath.Join(home, rest)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
