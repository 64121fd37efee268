// Package archive packs a directory tree into an in-memory zip buffer.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrArchive is wrapped by every *Error.
var ErrArchive = errors.New("archive failed")

// Error reports a failed archive. No partial buffer accompanies it.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrArchive, e.Err}
}

// Archiver zips directories found on its filesystem.
type Archiver struct {
	fs afero.Fs
}

// New returns an Archiver reading from fsys.
func New(fsys afero.Fs) *Archiver {
	return &Archiver{fs: fsys}
}

// NewOS returns an Archiver rooted at dir on the OS filesystem; paths
// passed to Archive are resolved relative to dir.
func NewOS(dir string) *Archiver {
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Archive zips every file and subdirectory under root. Entry names are
// relative to root and slash-separated.
func (a *Archiver) Archive(ctx context.Context, root string) ([]byte, error) {
	root = cleanRoot(root)

	info, err := a.fs.Stat(root)
	if err != nil {
		return nil, &Error{Op: "stat", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &Error{Op: "stat", Path: root, Err: errors.New("not a directory")}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	walkErr := afero.Walk(a.fs, root, func(p string, fi fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if fi.IsDir() {
			hdr := &zip.FileHeader{Name: rel + "/", Method: zip.Store}
			hdr.Modified = fi.ModTime()
			hdr.SetMode(fi.Mode())
			_, err := zw.CreateHeader(hdr)
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		return a.addFile(zw, p, rel, fi)
	})
	if walkErr != nil {
		zw.Close()
		return nil, &Error{Op: "walk", Path: root, Err: walkErr}
	}

	if err := zw.Close(); err != nil {
		return nil, &Error{Op: "close", Path: root, Err: err}
	}
	return buf.Bytes(), nil
}

func (a *Archiver) addFile(zw *zip.Writer, p, rel string, fi fs.FileInfo) error {
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = rel
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	f, err := a.fs.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

func cleanRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" || root == "/" {
		return string(filepath.Separator)
	}
	return filepath.Clean(root)
}

// ReadAll unpacks a zip buffer into a map of relative path to content.
// Directory entries map to nil.
func ReadAll(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			files[path.Clean(f.Name)] = nil
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		files[f.Name] = content
	}
	return files, nil
}
