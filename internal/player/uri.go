package player

import (
	"net/url"
	"path/filepath"
	"strings"
)

// FileURI returns a file:// URI for a local path. Strings that already carry a
// scheme are returned unchanged.
func FileURI(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
