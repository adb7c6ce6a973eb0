// Package filestore keeps uploaded bytes in a flat directory keyed by
// file name. Saving an existing name replaces its content.
package filestore

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

var ErrInvalidName = errors.New("invalid file name")

// WriteFunc streams the file content into w.
type WriteFunc func(ctx context.Context, w io.Writer) error

type Blob struct {
	Name string
	Size int64
	Hash string
}

type Disk struct {
	dir string
}

func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create storage dir")
	}
	return &Disk{dir: dir}, nil
}

// Save writes the content to a temporary file first and renames it in
// place, so readers never see a partial file.
func (d *Disk) Save(ctx context.Context, name string, write WriteFunc) (*Blob, error) {
	path, err := d.Path(name)
	if err != nil {
		return nil, err
	}

	tmp, err := os.OpenFile(filepath.Join(d.dir, "."+uuid.NewString()+".part"), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	hasher := blake3.New()
	counter := &countingWriter{}
	if err := write(ctx, io.MultiWriter(tmp, hasher, counter)); err != nil {
		tmp.Close()
		return nil, errors.Wrap(err, "write content")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, errors.Wrap(err, "sync")
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrap(err, "close")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, errors.Wrap(err, "rename")
	}

	return &Blob{
		Name: filepath.Base(path),
		Size: counter.n,
		Hash: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (d *Disk) Open(name string) (*os.File, error) {
	path, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Path maps a file name to its location inside the storage directory.
// Directory components are dropped.
func (d *Disk) Path(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if base == "/" || base == "." || base == ".." {
		return "", ErrInvalidName
	}
	return filepath.Join(d.dir, base), nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
