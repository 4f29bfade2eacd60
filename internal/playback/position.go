// Package playback holds the position and drift math shared by the server
// and every position-reporting path.
package playback

import (
	"math"
	"time"

	"github.com/sharetube/jukebox/internal/domain"
)

// Position returns the authoritative playback position in seconds.
//
// An unstarted track reports its stored position. A playing track reports the
// wall-clock time elapsed since its anchor, clamped to [0, duration]. A paused
// track reports its stored position clamped to the duration and never
// advances.
func Position(t *domain.Track, isPlaying bool, now time.Time) float64 {
	if t == nil {
		return 0
	}

	if t.StartedAt == 0 {
		return clamp(t.Position, 0, t.Duration)
	}

	if !isPlaying {
		return clamp(t.Position, 0, t.Duration)
	}

	elapsed := float64(now.UnixMilli()-t.StartedAt) / 1000
	return clamp(elapsed, 0, t.Duration)
}

// ExpectedPosition is the position a client should be at once a message sent
// now reaches it, halfRTT being the caller's one-way latency estimate.
func ExpectedPosition(t *domain.Track, isPlaying bool, now time.Time, halfRTT time.Duration) float64 {
	if halfRTT < 0 {
		halfRTT = 0
	}

	return Position(t, isPlaying, now.Add(halfRTT))
}

// Freeze pins the track at its current position. It is the pause and seek
// primitive and always goes through Position.
func Freeze(t *domain.Track, isPlaying bool, now time.Time) {
	if t == nil {
		return
	}

	t.Position = Position(t, isPlaying, now)
}

// Anchor re-anchors a track so that it reads position seconds at now.
func Anchor(t *domain.Track, position float64, now time.Time) {
	if t == nil {
		return
	}

	position = clamp(position, 0, t.Duration)
	t.Position = position
	t.StartedAt = now.UnixMilli() - int64(math.Round(position*1000))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	// a zero duration means unknown length, so there is no upper bound
	if hi > 0 && v > hi {
		return hi
	}

	return v
}
