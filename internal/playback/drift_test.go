package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		drift time.Duration
		want  DriftAction
	}{
		{150 * time.Millisecond, DriftIgnore},
		{-150 * time.Millisecond, DriftIgnore},
		{199 * time.Millisecond, DriftIgnore},
		{200 * time.Millisecond, DriftSoft},
		{500 * time.Millisecond, DriftSoft},
		{-500 * time.Millisecond, DriftSoft},
		{799 * time.Millisecond, DriftSoft},
		{800 * time.Millisecond, DriftHard},
		{900 * time.Millisecond, DriftHard},
		{-3 * time.Second, DriftHard},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.drift), "drift %v", tt.drift)
	}
}

func TestDrift(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, Drift(10.5, 10))
	assert.Equal(t, -250*time.Millisecond, Drift(9.75, 10))
}

func TestIsJitter(t *testing.T) {
	th := Thresholds{Jitter: time.Second}

	assert.False(t, th.IsJitter(15, 10, 5*time.Second))
	assert.False(t, th.IsJitter(15.9, 10, 5*time.Second))
	assert.True(t, th.IsJitter(17, 10, 5*time.Second))
	assert.True(t, th.IsJitter(10, 10, 5*time.Second), "a frozen client while time passes is jitter")
}
