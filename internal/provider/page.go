package provider

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/net/html"
)

type pageMeta struct {
	title     string
	artist    string
	thumbnail string
}

// fill copies page metadata into the fields the catalogue left empty.
func (m pageMeta) fill(t *Track) {
	if t.Title == "" {
		t.Title = m.title
	}
	if t.Artist == "" {
		t.Artist = m.artist
	}
	if t.Thumbnail == "" {
		t.Thumbnail = m.thumbnail
	}
}

// fetchPage reads display metadata from the html page of a track.
func (p *HTTPProvider) fetchPage(ctx context.Context, pageURL string) (pageMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return pageMeta{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return pageMeta{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pageMeta{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return pageMeta{}, fmt.Errorf("failed to parse page: %w", err)
	}

	var meta pageMeta
	walk(doc, &meta)

	return meta, nil
}

func walk(n *html.Node, meta *pageMeta) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if meta.title == "" && n.FirstChild != nil {
				meta.title = n.FirstChild.Data
			}
		case "link":
			if attr(n, "itemprop") == "name" && meta.artist == "" {
				meta.artist = attr(n, "content")
			}
		case "meta":
			switch {
			case attr(n, "property") == "og:image" && meta.thumbnail == "":
				meta.thumbnail = attr(n, "content")
			case attr(n, "name") == "author" && meta.artist == "":
				meta.artist = attr(n, "content")
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, meta)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}

	return ""
}
