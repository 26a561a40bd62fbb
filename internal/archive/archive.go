// Package archive reads and writes the gzip-compressed tar streams used to move
// system images between the CLI and a target.
//
// The CLI side works with folders on disk (PackDir, UnpackDir); the target side
// builds and parses images in memory (WriteFiles, ReadFiles). Entry names are
// always slash-separated and relative, and extraction refuses any entry that
// would land outside the destination folder.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

// MaxImageSize bounds the total uncompressed size of an image read in memory.
const MaxImageSize = 256 << 20

// ErrUnsafePath is returned for entries that are absolute or escape the
// destination folder.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// WriteFiles writes files as a tar.gz stream with entries in sorted order, so
// the same content always produces the same archive layout.
func WriteFiles(w io.Writer, files map[string][]byte) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	names := lo.Keys(files)
	slices.Sort(names)

	for _, name := range names {
		clean, err := cleanName(name)
		if err != nil {
			return err
		}
		data := files[name]
		hdr := &tar.Header{
			Name:     clean,
			Mode:     0o644,
			Size:     int64(len(data)),
			ModTime:  time.Unix(0, 0),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", clean, err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", clean, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// ReadFiles reads a tar.gz stream into memory. Directories are skipped, and
// the total size is bounded by MaxImageSize.
func ReadFiles(r io.Reader) (map[string][]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("image is not gzip-compressed: %w", err)
	}
	defer gz.Close()

	files := make(map[string][]byte)
	var total int64
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name, err := cleanName(hdr.Name)
		if err != nil {
			return nil, err
		}
		total += hdr.Size
		if total > MaxImageSize {
			return nil, fmt.Errorf("image exceeds %d bytes", MaxImageSize)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		files[name] = data
	}
}

// PackDir writes every regular file under dir into a tar.gz stream.
func PackDir(w io.Writer, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a folder", dir)
	}

	files := make(map[string][]byte)
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read image folder %s: %w", dir, err)
	}

	return WriteFiles(w, files)
}

// UnpackDir extracts a tar.gz stream into dir and returns the number of bytes
// written. Files land in a sibling temp folder that replaces dir only once
// every entry is on disk, so a failed extraction leaves dir untouched.
func UnpackDir(r io.Reader, dir string) (int64, error) {
	files, err := ReadFiles(r)
	if err != nil {
		return 0, err
	}

	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", parent, err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create staging folder for %s: %w", dir, err)
	}

	written, err := writeTree(tmp, files)
	if err == nil {
		err = replaceDir(tmp, dir)
	}
	if err != nil {
		os.RemoveAll(tmp)
		return 0, err
	}
	return written, nil
}

func writeTree(root string, files map[string][]byte) (int64, error) {
	if err := os.Chmod(root, 0o755); err != nil {
		return 0, err
	}
	var written int64
	for name, data := range files {
		dest := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return written, err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", name, err)
		}
		written += int64(len(data))
	}
	return written, nil
}

// replaceDir moves tmp into place at dir. An existing dir is replaced as a
// whole; a regular file in the way is an error.
func replaceDir(tmp, dir string) error {
	info, err := os.Lstat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("%s exists and is not a folder", dir)
	default:
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to replace %s: %w", dir, err)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("failed to move image into %s: %w", dir, err)
	}
	return nil
}

// cleanName normalizes an entry name and rejects unsafe ones.
func cleanName(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return clean, nil
}
