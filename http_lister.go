package fhir_etl

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// HTTPLister lists a release directory through its HTML index page, reading
// size and modification time from a HEAD request per file.
type HTTPLister struct {
	client  *http.Client
	baseURL string
	filter  string
	now     func() time.Time
}

func NewHTTPLister(client *http.Client, baseURL, filter string) *HTTPLister {
	return &HTTPLister{client: clientOrDefault(client), baseURL: strings.TrimSuffix(baseURL, "/") + "/", filter: filter, now: time.Now}
}

func (l *HTTPLister) List(ctx context.Context) ([]RemoteFile, error) {
	body, err := fetch(ctx, l.client, l.baseURL)
	if err != nil {
		return nil, err
	}
	names, err := indexLinks(body)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse index of %s: %w", l.baseURL, err)
	}
	var files []RemoteFile
	for _, name := range names {
		if !matchesFilter(name, l.filter) {
			continue
		}
		f, err := l.head(ctx, name)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func (l *HTTPLister) head(ctx context.Context, name string) (RemoteFile, error) {
	f := RemoteFile{Name: name}
	u := l.baseURL + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return f, fmt.Errorf("Failed to create request for %s: %w", u, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return f, fmt.Errorf("Failed to HEAD %s: %w", u, err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return f, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > 0 {
		f.Size = resp.ContentLength
	}
	f.LastModified = l.now()
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			f.LastModified = t
		}
	}
	return f, nil
}

// indexLinks returns the file names linked from a directory index page.
// Links to other directories, queries and other hosts are left out.
func indexLinks(page []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var names []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				if name := linkedFileName(a.Val); name != "" && !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return names, nil
}

func linkedFileName(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Host != "" || u.RawQuery != "" || u.Fragment != "" {
		return ""
	}
	if u.Path == "" || strings.HasSuffix(u.Path, "/") || strings.HasPrefix(u.Path, "..") {
		return ""
	}
	return path.Base(u.Path)
}
