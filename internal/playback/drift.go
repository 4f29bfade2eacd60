package playback

import (
	"math"
	"time"
)

type DriftAction string

const (
	DriftIgnore DriftAction = "ignore"
	// DriftSoft asks the client to nudge its playback rate.
	DriftSoft DriftAction = "soft"
	// DriftHard asks the client to reseek immediately.
	DriftHard DriftAction = "hard"
)

type Thresholds struct {
	Ignore time.Duration
	Hard   time.Duration
	Jitter time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Ignore: 200 * time.Millisecond,
		Hard:   800 * time.Millisecond,
		Jitter: 1500 * time.Millisecond,
	}
}

// Classify maps the magnitude of a drift to the correction a client should
// apply.
func (th Thresholds) Classify(drift time.Duration) DriftAction {
	if drift < 0 {
		drift = -drift
	}

	switch {
	case drift < th.Ignore:
		return DriftIgnore
	case drift < th.Hard:
		return DriftSoft
	default:
		return DriftHard
	}
}

// Drift is the signed difference between a reported and an expected
// position, both in seconds.
func Drift(reported, expected float64) time.Duration {
	return time.Duration(math.Round((reported - expected) * float64(time.Second)))
}

// IsJitter flags a client report whose movement since its previous report
// disagrees with the wall-clock time that passed between the two.
func (th Thresholds) IsJitter(current, previous float64, elapsed time.Duration) bool {
	delta := current - previous
	diff := math.Abs(delta - elapsed.Seconds())

	return diff > th.Jitter.Seconds()
}
