// Package library keeps the set of playable media files in sync with the store
// and picks the next track to load.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/store"
)

// ErrEmpty is returned by Next when the library has no tracks.
var ErrEmpty = errors.New("library is empty")

// DefaultExtensions are the media file extensions picked up by a scan.
var DefaultExtensions = []string{".mp3", ".flac", ".ogg", ".opus", ".wav", ".m4a", ".mp4", ".mkv", ".webm", ".avi"}

// Config controls where and what the library scans.
type Config struct {
	Dir        string
	Extensions []string
}

// ScanResult summarizes a scan.
type ScanResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Total   int `json:"total"`
}

// Library maps a media directory onto the tracks table.
type Library struct {
	dir    string
	exts   map[string]bool
	tracks *store.TrackRepository
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New creates a Library over cfg.Dir backed by tracks.
func New(cfg Config, tracks *store.TrackRepository, logger *zap.Logger) *Library {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}

	return &Library{
		dir:    cfg.Dir,
		exts:   set,
		tracks: tracks,
		logger: logger.Named("library"),
		now:    time.Now,
	}
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// Scan walks the library directory, adds new media files and removes tracks
// whose files are gone. Tracks outside the directory are left alone.
func (l *Library) Scan() (ScanResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res ScanResult
	if l.dir == "" {
		return res, nil
	}

	found := make(map[string]bool)
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.dir {
				return err
			}
			l.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() || !l.isMedia(path) {
			return nil
		}

		found[path] = true
		created, err := l.tracks.Add(path, Title(path))
		if err != nil {
			return fmt.Errorf("add track %s: %w", path, err)
		}
		if created {
			res.Added++
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", l.dir, err)
	}

	existing, err := l.tracks.List()
	if err != nil {
		return res, fmt.Errorf("list tracks: %w", err)
	}
	for _, t := range existing {
		if found[t.Path] || !l.contains(t.Path) {
			continue
		}
		if err := l.tracks.DeleteByPath(t.Path); err != nil && !errors.Is(err, store.ErrNotFound) {
			return res, fmt.Errorf("remove track %s: %w", t.Path, err)
		}
		res.Removed++
	}

	res.Total, err = l.tracks.Count()
	if err != nil {
		return res, fmt.Errorf("count tracks: %w", err)
	}

	l.logger.Info("library scanned",
		zap.String("dir", l.dir),
		zap.Int("added", res.Added),
		zap.Int("removed", res.Removed),
		zap.Int("total", res.Total),
	)
	return res, nil
}

// Next returns the least recently played track and marks it played.
// Tracks whose files have disappeared since the last scan are dropped.
func (l *Library) Next() (*store.Track, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		t, err := l.tracks.LeastRecentlyPlayed()
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEmpty
		}
		if err != nil {
			return nil, fmt.Errorf("pick next track: %w", err)
		}

		if _, err := os.Stat(t.Path); errors.Is(err, fs.ErrNotExist) {
			l.logger.Info("dropping missing track", zap.String("path", t.Path))
			if err := l.tracks.DeleteByPath(t.Path); err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("remove track %s: %w", t.Path, err)
			}
			continue
		}

		now := l.now()
		if err := l.tracks.MarkPlayed(t.ID, now); err != nil {
			return nil, fmt.Errorf("mark %s played: %w", t.Path, err)
		}
		t.PlayCount++
		t.LastPlayedAt = &now
		return t, nil
	}
}

// Tracks lists all tracks by path.
func (l *Library) Tracks() ([]*store.Track, error) {
	return l.tracks.List()
}

func (l *Library) isMedia(path string) bool {
	return l.exts[strings.ToLower(filepath.Ext(path))]
}

func (l *Library) contains(path string) bool {
	rel, err := filepath.Rel(l.dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Title derives a display title from a file name.
func Title(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
