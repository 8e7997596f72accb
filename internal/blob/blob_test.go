package blob

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arkivo/arkivo/internal/node"
)

func TestFSRoundTrip(t *testing.T) {
	ctx := t.Context()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}

	in := File{Name: "report.pdf", Mimetype: "application/pdf", Content: []byte("pdf bytes")}
	if err := s.Write(ctx, "n1", in, WriteOpts{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out, err := s.Read(ctx, "n1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(out.Content, in.Content) || out.Name != "report.pdf" || out.Mimetype != "application/pdf" {
		t.Errorf("Read = %+v", out)
	}

	// Rewrite replaces the content.
	if err := s.Write(ctx, "n1", File{Content: []byte("v2")}, WriteOpts{Title: "Report", Mimetype: "application/pdf"}); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	out, err = s.Read(ctx, "n1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(out.Content) != "v2" || out.Name != "Report" {
		t.Errorf("after rewrite = %+v", out)
	}

	if err := s.Delete(ctx, "n1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Read(ctx, "n1"); !node.IsNotFound(err) {
		t.Errorf("Read after delete = %v, want not found", err)
	}
	if err := s.Delete(ctx, "n1"); !node.IsNotFound(err) {
		t.Errorf("second Delete = %v, want not found", err)
	}
}

func TestFSSidecarCleanup(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	s, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, "n1", File{Name: "a", Content: []byte("x")}, WriteOpts{}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "n1.meta.json")); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	if err := s.Delete(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "n1.meta.json")); !os.IsNotExist(err) {
		t.Error("sidecar survived delete")
	}
	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestMemoryStorage(t *testing.T) {
	ctx := t.Context()
	m := NewMemory()
	if err := m.Write(ctx, "n1", File{Content: []byte("x")}, WriteOpts{Title: "T", Mimetype: "text/plain"}); err != nil {
		t.Fatal(err)
	}
	out, err := m.Read(ctx, "n1")
	if err != nil || out.Name != "T" || out.Mimetype != "text/plain" {
		t.Fatalf("Read = %+v, %v", out, err)
	}
	// Reads hand out copies.
	out.Content[0] = 'y'
	again, _ := m.Read(ctx, "n1")
	if again.Content[0] != 'x' {
		t.Error("Read leaked internal storage")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d", m.Len())
	}

	m.FailWrites = errors.New("disk full")
	if err := m.Write(ctx, "n2", File{}, WriteOpts{}); err == nil {
		t.Error("FailWrites not honored")
	}
	if err := m.Delete(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "n1"); !node.IsNotFound(err) {
		t.Errorf("second Delete = %v, want not found", err)
	}
}
