// Package media stores uploaded images on disk and hands back opaque
// references suitable for embedding in messages and avatars.
package media

import (
	"chatwire/errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Store keeps every accepted upload under one flat directory. Names are
// server-assigned, clients never influence where bytes land on disk.
type Store struct {
	dir      string
	maxBytes int64
	log      *slog.Logger
}

func NewStore(dir string, maxBytes int64, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes, log: log}, nil
}

// Save sniffs the payload content type, accepts images only and writes
// the bytes under a generated name. It returns the public reference.
func (s *Store) Save(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.ErrUnsupportedMedia
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", errors.ErrMediaTooLarge
	}

	// Sniffed from magic bytes, the client-declared type is never trusted.
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%w: got %s", errors.ErrUnsupportedMedia, mtype.String())
	}

	name := uuid.NewString() + mtype.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing media file: %w", err)
	}

	s.log.Debug("Stored media",
		slog.String("name", name),
		slog.String("mime", mtype.String()),
		slog.Int("bytes", len(data)))
	return "/media/" + name, nil
}

// Path resolves a stored name to its on-disk location. Anything that is
// not a plain file name inside the store directory is treated as absent.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", errors.ErrNotFound
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", errors.ErrNotFound
	}
	return path, nil
}
