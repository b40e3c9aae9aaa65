package data

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

//go:embed defaults
var bundled embed.FS

// Bundled returns the configuration defaults shipped with the binary, rooted
// so that TalismanPath names resolve against it.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "defaults")
	if err != nil {
		panic(err) // embedded tree is fixed at build time
	}
	return sub
}

// TalismanPath is the slash-separated location of a talisman document,
// relative to both the bundled tree and the data directory.
func TalismanPath(strength, id string) string {
	return path.Join("talismans", strength, id+".yml")
}

// LoadBundled parses a bundled document.
func LoadBundled(fsys fs.FS, name string) (*Document, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("bundled %s: %w", name, err)
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("bundled %s: %w", name, err)
	}
	return doc, nil
}

// ExtractDefault copies a bundled document to dataDir if no user copy exists yet.
// I/O failures are logged and ignored; the copy is retried on the next start.
func ExtractDefault(fsys fs.FS, name, dataDir string, log *zap.Logger) {
	dst := filepath.Join(dataDir, filepath.FromSlash(name))
	if _, err := os.Stat(dst); err == nil {
		return
	} else if !errors.Is(err, fs.ErrNotExist) {
		log.Warn("stat user config failed", zap.String("path", dst), zap.Error(err))
		return
	}

	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		log.Warn("read bundled config failed", zap.String("name", name), zap.Error(err))
		return
	}
	if err := WriteFileAtomic(dst, raw, 0o644); err != nil {
		log.Warn("extract bundled config failed", zap.String("path", dst), zap.Error(err))
		return
	}
	log.Debug("extracted bundled config", zap.String("path", dst))
}
