package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/et-316/ex-file-eraser/internal/session"
)

func TestWriteRunSplitsFolders(t *testing.T) {
	photos := []session.Photo{
		{ID: "p1", SourceName: "a.jpg", Data: []byte("one"), Flagged: false},
		{ID: "p2", SourceName: "b.PNG", Data: []byte("two"), Flagged: true},
		{ID: "p3", SourceName: "noext", Data: []byte("three"), Flagged: false},
	}

	var buf bytes.Buffer
	written, err := WriteRun(&buf, photos)
	if err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}
	if written != 3 {
		t.Fatalf("written = %d, want 3", written)
	}

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("could not open produced zip: %v", err)
	}

	want := map[string]string{
		"clean/photo-1.jpg":    "one",
		"archived/photo-2.png": "two",
		"clean/photo-3.jpg":    "three",
	}
	if len(reader.File) != len(want) {
		t.Fatalf("zip has %d entries, want %d", len(reader.File), len(want))
	}
	for _, f := range reader.File {
		wantBody, ok := want[f.Name]
		if !ok {
			t.Errorf("unexpected zip entry %s", f.Name)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("could not open entry %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("could not read entry %s: %v", f.Name, err)
		}
		if string(body) != wantBody {
			t.Errorf("entry %s = %q, want %q", f.Name, body, wantBody)
		}
	}
}

func TestWriteRunSkipsEmptyPhotos(t *testing.T) {
	photos := []session.Photo{
		{ID: "p1", SourceName: "a.jpg", Data: []byte("one")},
		{ID: "p2", SourceName: "imported-from-library.jpg"}, // no local bytes
	}

	var buf bytes.Buffer
	written, err := WriteRun(&buf, photos)
	if err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}
	if written != 1 {
		t.Errorf("written = %d, want 1", written)
	}
}
