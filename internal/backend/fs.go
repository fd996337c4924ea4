// Package backend implements cache storage: a filesystem backend built
// on billy (osfs in production, memfs in tests) and a SQLite blob store
// for deployments that want the cache in a single database file.
package backend

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/ifc-lite/modelstore/api"
)

// cacheExt keeps cache blobs distinguishable from stray files in the
// cache directory; Entries only reports keys carrying it.
const cacheExt = ".ifcl"

// FS stores cache blobs as files in a billy filesystem, one file per
// key. Writes go through a temp file and rename so a crashed Put never
// leaves a torn blob behind.
type FS struct {
	fs billy.Filesystem
}

// NewFS wraps an existing billy filesystem.
func NewFS(fs billy.Filesystem) *FS {
	return &FS{fs: fs}
}

// OpenDir opens (creating if needed) a cache directory on the host
// filesystem, chrooted so keys cannot escape it.
func OpenDir(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return NewFS(chroot.New(osfs.New("/"), dir)), nil
}

func keyFile(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return key + cacheExt, nil
}

// Get reads the blob for a key. A missing key is (nil, false, nil).
func (b *FS) Get(key string) ([]byte, bool, error) {
	name, err := keyFile(key)
	if err != nil {
		return nil, false, err
	}
	f, err := b.fs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open cache blob %s: %w", key, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false, fmt.Errorf("read cache blob %s: %w", key, err)
	}
	return data, true, nil
}

// Put writes the blob for a key, replacing any previous value.
func (b *FS) Put(key string, data []byte) error {
	name, err := keyFile(key)
	if err != nil {
		return err
	}
	tmp := name + ".tmp"
	f, err := b.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create cache blob %s: %w", key, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = b.fs.Remove(tmp)
		return fmt.Errorf("write cache blob %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = b.fs.Remove(tmp)
		return fmt.Errorf("close cache blob %s: %w", key, err)
	}
	if err := b.fs.Rename(tmp, name); err != nil {
		_ = b.fs.Remove(tmp)
		return fmt.Errorf("publish cache blob %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob for a key. Deleting an absent key is a no-op.
func (b *FS) Delete(key string) error {
	name, err := keyFile(key)
	if err != nil {
		return err
	}
	if err := b.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cache blob %s: %w", key, err)
	}
	return nil
}

// Entries lists the stored blobs, sorted by key.
func (b *FS) Entries() ([]api.BackendEntry, error) {
	infos, err := b.fs.ReadDir(".")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list cache dir: %w", err)
	}
	var out []api.BackendEntry
	for _, fi := range infos {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), cacheExt) {
			continue
		}
		out = append(out, api.BackendEntry{
			Key:  strings.TrimSuffix(fi.Name(), cacheExt),
			Size: fi.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

var _ api.CacheBackend = (*FS)(nil)
