package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// defaultClient returns the HTTP client used for feed fetches.
func defaultClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

// DiscoverCSVURLs fetches each feed index page and returns the unique
// absolute URLs of every .csv link found, preserving feed order. Per-feed
// failures are accumulated; one broken feed never aborts discovery.
func DiscoverCSVURLs(ctx context.Context, client *http.Client, feedURLs []string, logger *slog.Logger) ([]string, error) {
	if client == nil {
		client = defaultClient()
	}

	var discovered []string
	seen := make(map[string]bool)
	var discoveryErr error

	for _, feedURL := range feedURLs {
		if err := ctx.Err(); err != nil {
			return discovered, errors.Join(discoveryErr, err)
		}
		l := logger.With(slog.String("feed_url", feedURL))

		base, err := url.Parse(feedURL)
		if err != nil {
			discoveryErr = errors.Join(discoveryErr, fmt.Errorf("parse feed url %s: %w", feedURL, err))
			continue
		}
		body, err := fetch(ctx, client, feedURL)
		if err != nil {
			l.Warn("skipping unreachable feed", slog.Any("err", err))
			discoveryErr = errors.Join(discoveryErr, err)
			continue
		}
		root, err := html.Parse(bytes.NewReader(body))
		if err != nil {
			discoveryErr = errors.Join(discoveryErr, fmt.Errorf("parse feed html %s: %w", feedURL, err))
			continue
		}

		found := 0
		for _, link := range csvLinks(root) {
			abs, err := base.Parse(link)
			if err != nil {
				l.Warn("ignoring unresolvable link", slog.String("link", link), slog.Any("err", err))
				continue
			}
			u := abs.String()
			if !seen[u] {
				seen[u] = true
				discovered = append(discovered, u)
				found++
			}
		}
		l.Debug("feed scanned", slog.Int("new_links", found))
	}
	return discovered, discoveryErr
}

// FetchFeeds discovers CSV links on the feed pages, downloads each file into
// destDir, and returns the local paths.
func FetchFeeds(ctx context.Context, client *http.Client, feedURLs []string, destDir string, logger *slog.Logger) ([]string, error) {
	if client == nil {
		client = defaultClient()
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create import directory %s: %w", destDir, err)
	}

	urls, err := DiscoverCSVURLs(ctx, client, feedURLs, logger)
	var paths []string
	for _, u := range urls {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return paths, errors.Join(err, ctxErr)
		}
		body, fetchErr := fetch(ctx, client, u)
		if fetchErr != nil {
			logger.Warn("skipping failed download", slog.String("url", u), slog.Any("err", fetchErr))
			err = errors.Join(err, fetchErr)
			continue
		}
		path := filepath.Join(destDir, filepath.Base(u))
		if writeErr := os.WriteFile(path, body, 0o644); writeErr != nil {
			err = errors.Join(err, fmt.Errorf("save feed file %s: %w", path, writeErr))
			continue
		}
		logger.Debug("downloaded feed file", slog.String("path", path), slog.Int("bytes", len(body)))
		paths = append(paths, path)
	}
	return paths, err
}

// fetch GETs a URL and returns the body, treating non-200 statuses as errors.
func fetch(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", rawURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bad status %q fetching %s: %s", resp.Status, rawURL, string(snippet))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", rawURL, err)
	}
	return body, nil
}

// csvLinks walks an HTML tree depth-first and collects href values of <a>
// tags pointing at .csv files.
func csvLinks(root *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if strings.HasSuffix(strings.ToLower(attr.Val), ".csv") {
					out = append(out, attr.Val)
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}
