package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackPage = `<!DOCTYPE html>
<html><head>
<title>Blue in Green</title>
<meta property="og:image" content="https://img.example/blue.jpg">
<link itemprop="name" content="Miles Davis">
</head><body></body></html>`

func TestGetTrackFillsMetadataFromPage(t *testing.T) {
	r := chi.NewRouter()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	r.Get("/tracks/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		track := Track{ID: id, Duration: 337, StreamingURL: srv.URL + "/pages/" + id}
		if id == "titled" {
			track.Title = "Catalogue title"
		}
		json.NewEncoder(w).Encode(track)
	})
	r.Get("/pages/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(trackPage))
	})

	p := NewHTTPProvider(srv.URL, time.Second)
	ctx := context.Background()

	track, err := p.GetTrack(ctx, "blue")
	require.NoError(t, err)
	assert.Equal(t, "Blue in Green", track.Title)
	assert.Equal(t, "Miles Davis", track.Artist)
	assert.Equal(t, "https://img.example/blue.jpg", track.Thumbnail)
	assert.Equal(t, 337.0, track.Duration)

	track, err = p.GetTrack(ctx, "titled")
	require.NoError(t, err)
	assert.Equal(t, "Catalogue title", track.Title)
	assert.Empty(t, track.Artist, "titled entries are not enriched")

	track, err = p.GetTrack(ctx, "broken")
	require.NoError(t, err, "a failing page leaves the track as the catalogue sent it")
	assert.Empty(t, track.Title)
}
