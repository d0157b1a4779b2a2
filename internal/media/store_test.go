package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStoreSaveAndRelease(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "/media/")
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	asset, err := store.Save(context.Background(), "mug.PNG", strings.NewReader("image-bytes"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if asset.ID == "" {
		t.Fatal("Save returned empty asset id")
	}
	if !strings.HasSuffix(asset.ID, ".png") {
		t.Errorf("asset id %q should keep a lowercased extension", asset.ID)
	}
	if asset.URL != "/media/"+asset.ID {
		t.Errorf("asset URL %q does not match base URL and id", asset.URL)
	}

	content, err := os.ReadFile(filepath.Join(dir, asset.ID))
	if err != nil {
		t.Fatalf("saved file is not readable: %v", err)
	}
	if string(content) != "image-bytes" {
		t.Errorf("saved content %q, want %q", content, "image-bytes")
	}

	if err := store.Release(context.Background(), asset.ID); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, asset.ID)); !os.IsNotExist(err) {
		t.Error("released file still exists")
	}
}

func TestDiskStoreReleaseToleratesMissingFile(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	if err := store.Release(context.Background(), "never-existed.jpg"); err != nil {
		t.Errorf("releasing a missing file should not error, got: %v", err)
	}
}

func TestDiskStoreReleaseRejectsPathEscapes(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	for _, id := range []string{"", "../secret", "a/b.png"} {
		if err := store.Release(context.Background(), id); err == nil {
			t.Errorf("Release(%q) should be rejected", id)
		}
	}
}

func TestDiskStoreSaveRespectsCancelledContext(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Save(ctx, "mug.png", strings.NewReader("x")); err == nil {
		t.Error("Save with cancelled context should fail")
	}
}
