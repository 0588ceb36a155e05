package web

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/decred/slog"
)

// nullHash is reported for icons the cache has never seen, so clients can
// tell "no asset" apart from "asset changed".
const nullHash = "null_hash"

// AssetCache hashes the avatar files once at startup. Profile payloads
// carry the hash so clients only re-download icons that actually changed.
type AssetCache struct {
	dir    string
	hashes map[string]string
	log    slog.Logger
}

// NewAssetCache scans the directory and hashes every regular file in it.
// A missing directory yields an empty cache.
func NewAssetCache(dir string, log slog.Logger) *AssetCache {
	cache := &AssetCache{dir: dir, hashes: make(map[string]string), log: log}
	if dir == "" {
		return cache
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warnf("avatar directory %s not readable: %v", dir, err)
		return cache
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		hash, err := hashFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warnf("failed to hash asset %s: %v", entry.Name(), err)
			continue
		}
		cache.hashes[entry.Name()] = hash
	}
	log.Infof("hashed %d avatar assets from %s", len(cache.hashes), dir)
	return cache
}

// IconHash returns the content hash for an icon name.
func (ac *AssetCache) IconHash(name string) string {
	if hash, ok := ac.hashes[name]; ok {
		return hash
	}
	return nullHash
}

// List returns the full name-to-hash map.
func (ac *AssetCache) List() map[string]string {
	out := make(map[string]string, len(ac.hashes))
	for name, hash := range ac.hashes {
		out[name] = hash
	}
	return out
}

// FilePath resolves an asset name to its on-disk path, refusing names that
// escape the asset directory. The boolean reports whether the asset exists.
func (ac *AssetCache) FilePath(name string) (string, bool) {
	if _, ok := ac.hashes[name]; !ok {
		return "", false
	}
	if filepath.Base(name) != name {
		return "", false
	}
	return filepath.Join(ac.dir, name), true
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
