package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/floatchat/floatchat-backend/internal/platform/logger"
)

// headWorkers bounds the concurrent metadata probes during discovery.
const headWorkers = 8

const userAgent = "floatchat-mirror/1.0"

// Candidate is one remote file eligible for download.
type Candidate struct {
	URL          string
	Name         string
	Size         int64
	LastModified string
	Year         string
	Month        string
}

// PermanentError marks an HTTP 4xx or malformed-listing failure: the path is
// skipped until its fingerprint entry is evicted.
type PermanentError struct {
	URL    string
	Status int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent remote error for %s: status=%d", e.URL, e.Status)
}

// Crawler lists the HTML index pages of the configured date subtrees (the
// root when no year filter is set) and filters file links against the accept
// globs. Subdirectory links are skipped; it does not descend below the
// listed pages.
type Crawler struct {
	client      *http.Client
	rootURL     string
	acceptGlobs []string
	years       []string
	months      []string
	retryMax    int
	backoffBase time.Duration
	log         *logger.Logger
}

type Config struct {
	RootURL     string
	AcceptGlobs []string
	Years       []string
	Months      []string
	Timeout     time.Duration
	RetryMax    int
	BackoffBase time.Duration
}

func New(cfg Config, baseLog *logger.Logger) (*Crawler, error) {
	root := strings.TrimSpace(cfg.RootURL)
	if root == "" {
		return nil, fmt.Errorf("root url required")
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	parsed, err := url.Parse(root)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid root url %q", cfg.RootURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Crawler{
		client:      &http.Client{Timeout: timeout},
		rootURL:     root,
		acceptGlobs: cfg.AcceptGlobs,
		years:       cfg.Years,
		months:      cfg.Months,
		retryMax:    cfg.RetryMax,
		backoffBase: cfg.BackoffBase,
		log:         baseLog.With("service", "MirrorCrawler"),
	}, nil
}

// Discover lists candidate files under the date subtrees, up to budget.
// A listing failure for one subtree is logged and skipped; the crawl
// continues.
func (c *Crawler) Discover(ctx context.Context, budget int) ([]Candidate, error) {
	if budget <= 0 {
		return nil, nil
	}

	dirs := c.subtreeURLs()
	var accepted []Candidate
	seen := map[string]bool{}
	for _, dir := range dirs {
		if len(accepted) >= budget {
			break
		}
		links, err := c.listDirectory(ctx, dir.url)
		if err != nil {
			c.log.Warn("directory listing failed", "url", dir.url, "error", err)
			continue
		}
		for _, link := range links {
			if len(accepted) >= budget {
				break
			}
			if seen[link] || !c.accepted(link) {
				continue
			}
			seen[link] = true
			accepted = append(accepted, Candidate{
				URL:   link,
				Name:  path.Base(link),
				Year:  dir.year,
				Month: dir.month,
			})
		}
	}

	// Probe size and last-modified concurrently; a failed probe drops the
	// candidate for this tick only.
	ok := make([]bool, len(accepted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(headWorkers)
	for i := range accepted {
		i := i
		g.Go(func() error {
			size, lastModified, err := c.head(gctx, accepted[i].URL)
			if err != nil {
				c.log.Warn("head request failed", "url", accepted[i].URL, "error", err)
				return nil
			}
			accepted[i].Size = size
			accepted[i].LastModified = lastModified
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(accepted))
	for i, candidate := range accepted {
		if ok[i] {
			out = append(out, candidate)
		}
	}
	return out, nil
}

type subtree struct {
	url   string
	year  string
	month string
}

// subtreeURLs expands the year/month filter into listing URLs. With no
// filter, the root itself is listed.
func (c *Crawler) subtreeURLs() []subtree {
	if len(c.years) == 0 {
		return []subtree{{url: c.rootURL}}
	}
	months := c.months
	if len(months) == 0 {
		months = []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "10", "11", "12"}
	}
	var out []subtree
	for _, year := range c.years {
		for _, month := range months {
			out = append(out, subtree{
				url:   c.rootURL + year + "/" + month + "/",
				year:  year,
				month: month,
			})
		}
	}
	return out
}

// listDirectory fetches one HTML index page and returns the absolute file
// links it contains, staying inside the mirror root.
func (c *Crawler) listDirectory(ctx context.Context, dirURL string) ([]string, error) {
	resp, err := c.getWithRetry(ctx, dirURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	base, err := url.Parse(dirURL)
	if err != nil {
		return nil, fmt.Errorf("parse dir url: %w", err)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &PermanentError{URL: dirURL, Status: resp.StatusCode}
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" || href == ".." || href == "../" {
					continue
				}
				ref, err := url.Parse(href)
				if err != nil {
					continue
				}
				absolute := base.ResolveReference(ref).String()
				if !strings.HasPrefix(absolute, c.rootURL) {
					continue
				}
				if strings.HasSuffix(absolute, "/") {
					continue
				}
				links = append(links, absolute)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links, nil
}

func (c *Crawler) head(ctx context.Context, fileURL string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fileURL, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, "", &PermanentError{URL: fileURL, Status: resp.StatusCode}
	}
	size := int64(0)
	if raw := resp.Header.Get("Content-Length"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			size = parsed
		}
	}
	return size, resp.Header.Get("Last-Modified"), nil
}

// Download fetches one candidate into destDir, writing through a .part file
// renamed only after the full body arrives. It returns the local path and
// the sha256 content hash.
func (c *Crawler) Download(ctx context.Context, candidate Candidate, destDir string) (string, string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", "", fmt.Errorf("download dir: %w", err)
	}
	localPath := filepath.Join(destDir, candidate.Name)
	tmpPath := localPath + ".part"

	resp, err := c.getWithRetry(ctx, candidate.URL)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	out, err := os.Create(tmpPath)
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	hasher := sha256.New()
	_, copyErr := io.Copy(out, io.TeeReader(resp.Body, hasher))
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		if copyErr != nil {
			return "", "", fmt.Errorf("download body: %w", copyErr)
		}
		return "", "", fmt.Errorf("flush temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", "", fmt.Errorf("finalize download: %w", err)
	}
	return localPath, hex.EncodeToString(hasher.Sum(nil)), nil
}

// getWithRetry retries transient failures (network errors and 5xx) with
// exponential backoff. 4xx is permanent and returned immediately.
func (c *Crawler) getWithRetry(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error %d for %s", resp.StatusCode, rawURL)
		default:
			_ = resp.Body.Close()
			return nil, &PermanentError{URL: rawURL, Status: resp.StatusCode}
		}
	}
	return nil, fmt.Errorf("retries exhausted for %s: %w", rawURL, lastErr)
}

func (c *Crawler) accepted(link string) bool {
	if len(c.acceptGlobs) == 0 {
		return true
	}
	name := path.Base(link)
	for _, glob := range c.acceptGlobs {
		if ok, err := path.Match(glob, name); err == nil && ok {
			return true
		}
	}
	return false
}
