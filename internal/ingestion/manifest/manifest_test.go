package manifest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/floatchat/floatchat-backend/internal/platform/logger"
)

func testManifest(t *testing.T) *Manifest {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	m, err := Open(filepath.Join(t.TempDir(), "manifest.db"), log)
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManifestRoundTrip(t *testing.T) {
	m := testManifest(t)
	ctx := context.Background()
	const url = "https://mirror.example/geo/2025/01/20250101_prof.nc"

	entry, err := m.Get(ctx, url)
	if err != nil {
		t.Fatalf("get unseen: %v", err)
	}
	if entry != nil {
		t.Fatalf("unseen url must return nil, got %+v", entry)
	}

	put := Entry{URL: url, Size: 123456, LastModified: "Wed, 01 Jan 2025 06:00:00 GMT", ContentHash: "abc123"}
	if err := m.Put(ctx, put); err != nil {
		t.Fatalf("put: %v", err)
	}
	entry, err = m.Get(ctx, url)
	if err != nil || entry == nil {
		t.Fatalf("get after put: entry=%v err=%v", entry, err)
	}
	if entry.Size != put.Size || entry.LastModified != put.LastModified || entry.ContentHash != put.ContentHash {
		t.Fatalf("entry mismatch: want=%+v got=%+v", put, *entry)
	}

	// Upsert overwrites.
	put.ContentHash = "def456"
	if err := m.Put(ctx, put); err != nil {
		t.Fatalf("second put: %v", err)
	}
	entry, _ = m.Get(ctx, url)
	if entry.ContentHash != "def456" {
		t.Fatalf("upsert must overwrite: got %q", entry.ContentHash)
	}
}

func TestShouldDownloadRules(t *testing.T) {
	m := testManifest(t)
	ctx := context.Background()
	const url = "https://mirror.example/geo/2025/01/a.nc"

	download, err := m.ShouldDownload(ctx, url, 100, "lm-1")
	if err != nil || !download {
		t.Fatalf("unseen file must download: download=%v err=%v", download, err)
	}

	if err := m.Put(ctx, Entry{URL: url, Size: 100, LastModified: "lm-1", ContentHash: "h"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if download, _ = m.ShouldDownload(ctx, url, 100, "lm-1"); download {
		t.Fatalf("unchanged file must not download")
	}
	if download, _ = m.ShouldDownload(ctx, url, 200, "lm-1"); !download {
		t.Fatalf("size change must trigger download")
	}
	if download, _ = m.ShouldDownload(ctx, url, 100, "lm-2"); !download {
		t.Fatalf("last-modified change must trigger download")
	}

	if err := m.Delete(ctx, url); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if download, _ = m.ShouldDownload(ctx, url, 100, "lm-1"); !download {
		t.Fatalf("evicted entry must download again")
	}
}
