package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/floatchat/floatchat-backend/internal/platform/logger"
)

const indexPage = `<html><body>
<a href="../">Parent Directory</a>
<a href="20250101_prof.nc">20250101_prof.nc</a>
<a href="20250102_prof.nc">20250102_prof.nc</a>
<a href="README.txt">README.txt</a>
<a href="https://elsewhere.example/evil.nc">evil</a>
</body></html>`

func testCrawler(t *testing.T, rootURL string) *Crawler {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c, err := New(Config{
		RootURL:     rootURL,
		AcceptGlobs: []string{"*.nc"},
		Years:       []string{"2025"},
		Months:      []string{"01"},
		Timeout:     5 * time.Second,
		RetryMax:    2,
		BackoffBase: time.Millisecond,
	}, log)
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}
	return c
}

func TestDiscoverFiltersAndProbes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2025/01/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, indexPage)
	})
	body := []byte("netcdf-bytes")
	serveFile := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Wed, 01 Jan 2025 06:00:00 GMT")
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		if r.Method != http.MethodHead {
			_, _ = w.Write(body)
		}
	}
	mux.HandleFunc("/2025/01/20250101_prof.nc", serveFile)
	mux.HandleFunc("/2025/01/20250102_prof.nc", serveFile)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testCrawler(t, srv.URL+"/")
	candidates, err := c.Discover(context.Background(), 10)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates want=2 got=%d (%+v)", len(candidates), candidates)
	}
	for _, candidate := range candidates {
		if candidate.Size != int64(len(body)) {
			t.Fatalf("size want=%d got=%d", len(body), candidate.Size)
		}
		if candidate.LastModified == "" {
			t.Fatalf("last-modified must be recorded")
		}
		if candidate.Year != "2025" || candidate.Month != "01" {
			t.Fatalf("date subtree tags missing: %+v", candidate)
		}
	}
}

func TestDiscoverRespectsBudget(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2025/01/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, indexPage)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testCrawler(t, srv.URL+"/")
	candidates, err := c.Discover(context.Background(), 1)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("budget must cap candidates: want=1 got=%d", len(candidates))
	}
}

func TestDownloadComputesHashAtomically(t *testing.T) {
	body := []byte("some profile payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := testCrawler(t, srv.URL+"/")
	dest := t.TempDir()
	localPath, hash, err := c.Download(context.Background(), Candidate{
		URL:  srv.URL + "/2025/01/f.nc",
		Name: "f.nc",
	}, dest)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	raw, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(raw) != string(body) {
		t.Fatalf("content mismatch")
	}
	sum := sha256.Sum256(body)
	if hash != hex.EncodeToString(sum[:]) {
		t.Fatalf("hash mismatch: want=%x got=%s", sum, hash)
	}
	if _, err := os.Stat(filepath.Join(dest, "f.nc.part")); !os.IsNotExist(err) {
		t.Fatalf("temp file must not survive a successful download")
	}
}

func TestDownloadRetriesTransientErrors(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testCrawler(t, srv.URL+"/")
	_, _, err := c.Download(context.Background(), Candidate{URL: srv.URL + "/2025/01/r.nc", Name: "r.nc"}, t.TempDir())
	if err != nil {
		t.Fatalf("download after retries: %v", err)
	}
	if attempts.Load() != 3 {
		t.Fatalf("attempts want=3 got=%d", attempts.Load())
	}
}

func TestDownloadTreats4xxAsPermanent(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testCrawler(t, srv.URL+"/")
	_, _, err := c.Download(context.Background(), Candidate{URL: srv.URL + "/2025/01/gone.nc", Name: "gone.nc"}, t.TempDir())
	var permanent *PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("want PermanentError, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Fatalf("4xx must not be retried: attempts=%d", attempts.Load())
	}
}
