package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FS stores blobs on the local filesystem, one file per node uuid plus a
// sidecar with the original name and mimetype. Writes go through a temp
// file and rename so readers never observe partial content.
type FS struct {
	dir string
}

// NewFS creates the storage directory if needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	return &FS{dir: dir}, nil
}

type sidecar struct {
	Name     string `json:"name"`
	Mimetype string `json:"mimetype"`
}

func (s *FS) contentPath(uuid string) string {
	return filepath.Join(s.dir, uuid)
}

func (s *FS) metaPath(uuid string) string {
	return filepath.Join(s.dir, uuid+".meta.json")
}

// Read implements Storage.
func (s *FS) Read(ctx context.Context, uuid string) (File, error) {
	content, err := os.ReadFile(s.contentPath(uuid))
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, errBlobNotFound(uuid)
		}
		return File{}, fmt.Errorf("reading blob %s: %w", uuid, err)
	}
	f := File{Content: content}
	if raw, err := os.ReadFile(s.metaPath(uuid)); err == nil {
		var meta sidecar
		if json.Unmarshal(raw, &meta) == nil {
			f.Name = meta.Name
			f.Mimetype = meta.Mimetype
		}
	}
	return f, nil
}

// Write implements Storage.
func (s *FS) Write(ctx context.Context, uuid string, f File, opts WriteOpts) error {
	tmp, err := os.CreateTemp(s.dir, uuid+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(f.Content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing blob %s: %w", uuid, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing blob %s: %w", uuid, err)
	}
	if err := os.Rename(tmpName, s.contentPath(uuid)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing blob %s: %w", uuid, err)
	}

	mimetype := f.Mimetype
	if mimetype == "" {
		mimetype = opts.Mimetype
	}
	name := f.Name
	if name == "" {
		name = opts.Title
	}
	raw, err := json.Marshal(sidecar{Name: name, Mimetype: mimetype})
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(uuid), raw, 0o640)
}

// Delete implements Storage.
func (s *FS) Delete(ctx context.Context, uuid string) error {
	if err := os.Remove(s.contentPath(uuid)); err != nil {
		if os.IsNotExist(err) {
			return errBlobNotFound(uuid)
		}
		return fmt.Errorf("deleting blob %s: %w", uuid, err)
	}
	// Sidecar is best-effort.
	os.Remove(s.metaPath(uuid))
	return nil
}
