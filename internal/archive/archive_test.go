package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestDirRoundTrip tests that a folder survives pack and unpack unchanged
func TestDirRoundTrip(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"image.yaml":              "model: cRIO-9045\n",
		"files/etc/ni-rt.ini":     "[systemsettings]\nhost_name=crio\n",
		"files/home/lvuser/a.txt": "payload",
	}
	for name, content := range files {
		p := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := PackDir(&buf, src); err != nil {
		t.Fatalf("PackDir() error = %v", err)
	}

	dst := filepath.Join(t.TempDir(), "out")
	written, err := UnpackDir(&buf, dst)
	if err != nil {
		t.Fatalf("UnpackDir() error = %v", err)
	}

	var want int64
	for name, content := range files {
		want += int64(len(content))
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if string(got) != content {
			t.Errorf("%s = %q, want %q", name, got, content)
		}
	}
	if written != want {
		t.Errorf("UnpackDir() wrote %d bytes, want %d", written, want)
	}
}

// TestWriteFilesRejectsUnsafeNames tests path traversal protection
func TestWriteFilesRejectsUnsafeNames(t *testing.T) {
	for _, name := range []string{"../escape", "/etc/passwd", ".."} {
		var buf bytes.Buffer
		err := WriteFiles(&buf, map[string][]byte{name: []byte("x")})
		if !errors.Is(err, ErrUnsafePath) {
			t.Errorf("WriteFiles(%q) error = %v, want ErrUnsafePath", name, err)
		}
	}
}

// TestReadFilesRejectsGarbage tests that non-gzip input is reported
func TestReadFilesRejectsGarbage(t *testing.T) {
	if _, err := ReadFiles(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("ReadFiles() expected error for non-gzip input")
	}
}

// TestPackDirRequiresFolder tests that a missing or non-folder path fails
func TestPackDirRequiresFolder(t *testing.T) {
	var buf bytes.Buffer
	if err := PackDir(&buf, filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("PackDir(missing) error = %v, want ErrNotExist", err)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := PackDir(&buf, file); err == nil {
		t.Error("PackDir(file) expected error")
	}
}

// TestUnpackDirFailureLeavesNoFolder tests that a failed extraction neither
// creates the destination nor leaves a staging folder behind
func TestUnpackDirFailureLeavesNoFolder(t *testing.T) {
	// "files/x" is both a file and a parent folder, so one write must fail.
	var buf bytes.Buffer
	err := WriteFiles(&buf, map[string][]byte{
		"image.yaml":  []byte("model: cRIO-9045\n"),
		"files/x":     []byte("file"),
		"files/x/sub": []byte("nested"),
	})
	if err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}
	image := buf.Bytes()

	tests := []struct {
		name     string
		existing map[string]string
	}{
		{name: "new folder"},
		{name: "existing folder", existing: map[string]string{"image.yaml": "model: old\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			dst := filepath.Join(parent, "image")
			for name, content := range tt.existing {
				writeFile(t, filepath.Join(dst, name), content)
			}

			if _, err := UnpackDir(bytes.NewReader(image), dst); err == nil {
				t.Fatal("UnpackDir() expected error")
			}

			entries, err := os.ReadDir(parent)
			if err != nil {
				t.Fatal(err)
			}
			for _, e := range entries {
				if e.Name() != "image" {
					t.Errorf("leftover entry %q in parent folder", e.Name())
				}
			}

			if tt.existing == nil {
				if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
					t.Errorf("destination exists after failed extraction: %v", err)
				}
				return
			}
			for name, content := range tt.existing {
				got, err := os.ReadFile(filepath.Join(dst, name))
				if err != nil || string(got) != content {
					t.Errorf("%s = %q (%v), want untouched %q", name, got, err, content)
				}
			}
		})
	}
}

// TestUnpackDirReplacesFolder tests that stale files do not survive a new image
func TestUnpackDirReplacesFolder(t *testing.T) {
	parent := t.TempDir()
	dst := filepath.Join(parent, "image")
	writeFile(t, filepath.Join(dst, "stale.txt"), "old")

	var buf bytes.Buffer
	if err := WriteFiles(&buf, map[string][]byte{"image.yaml": []byte("model: new\n")}); err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}
	if _, err := UnpackDir(&buf, dst); err != nil {
		t.Fatalf("UnpackDir() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dst, "stale.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale.txt survived extraction: %v", err)
	}
	if got, err := os.ReadFile(filepath.Join(dst, "image.yaml")); err != nil || string(got) != "model: new\n" {
		t.Errorf("image.yaml = %q (%v)", got, err)
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("parent holds %d entries, want only the image folder", len(entries))
	}
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
