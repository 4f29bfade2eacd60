package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPProvider talks to a catalogue exposing
//
//	GET {base}/tracks/{id}
//	GET {base}/tracks/{id}/related
//
// Entries without a title are completed from the html page at their
// streaming url.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) GetTrack(ctx context.Context, id string) (Track, error) {
	var track Track
	found, err := p.get(ctx, "/tracks/"+url.PathEscape(id), &track)
	if err != nil {
		return Track{}, fmt.Errorf("failed to get track %s: %w", id, err)
	}
	if !found {
		return Track{}, ErrTrackNotFound
	}

	if track.ID == "" {
		track.ID = id
	}

	// untitled catalogue entries borrow display metadata from their page
	if track.Title == "" && track.StreamingURL != "" {
		if meta, err := p.fetchPage(ctx, track.StreamingURL); err == nil {
			meta.fill(&track)
		}
	}

	return track, nil
}

func (p *HTTPProvider) GetRelatedTrack(ctx context.Context, seedID string) (*Track, error) {
	var track Track
	found, err := p.get(ctx, "/tracks/"+url.PathEscape(seedID)+"/related", &track)
	if err != nil {
		return nil, fmt.Errorf("failed to get track related to %s: %w", seedID, err)
	}
	if !found || track.ID == "" {
		return nil, nil
	}

	return &track, nil
}

// get decodes a 200 response into v. It reports false for 404 and 204.
func (p *HTTPProvider) get(ctx context.Context, path string, v any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusNoContent:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return false, fmt.Errorf("%w: unexpected status code: %d", ErrUnavailable, resp.StatusCode)
	default:
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	return true, nil
}
