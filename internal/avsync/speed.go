package avsync

import (
	"math"

	"github.com/gogpu/present/internal/queue"
)

// bestSpeedForDuration finds a speed factor such that the display rate
// is an integer multiple of the effective frame rate. If that is not
// possible for the plain ratio, integer multiples of the frame duration
// are tried as well, which still improves the end result.
func bestSpeedForDuration(vsync, frame float64) float64 {
	ratio := frame / vsync
	bestScale := -1.0
	bestDev := math.Inf(1)
	for factor := 1; factor <= 5; factor++ {
		scaled := ratio * float64(factor)
		scale := scaled / math.Round(scaled)
		dev := math.Abs(scale - 1)
		if dev < bestDev {
			bestScale = scale
			bestDev = dev
		}
	}
	return bestScale
}

// findBestSpeed averages the per-frame best speed factor across the
// recorded frame history. Returns 1 if no usable durations exist.
func findBestSpeed(hist *queue.History, vsync, playbackSpeed float64) float64 {
	total := 0.0
	num := 0
	for i := 0; i < hist.Len(); i++ {
		info, _ := hist.Get(i)
		if info.ApproxDuration <= 0 {
			continue
		}
		total += bestSpeedForDuration(vsync, info.ApproxDuration/playbackSpeed)
		num++
	}
	if num == 0 {
		return 1
	}
	return total / float64(num)
}

// minDriftSamples is the history depth required before the drift
// regression is trusted.
const minDriftSamples = 10

// computeAudioDrift estimates the long-term audio desync slope by
// least-squares linear regression, with vsync scheduling points as the
// time axis and the recorded av difference as the value. Returns NaN
// when the history is too short or contains frames that were not
// display-synced.
func computeAudioDrift(hist *queue.History, vsync float64) float64 {
	if hist.Len() <= minDriftSamples {
		return math.NaN()
	}
	num := hist.Len() - 1
	sumX, sumY, sumXY, sumXX := 0.0, 0.0, 0.0, 0.0
	x := 0.0
	for n := 0; n < num; n++ {
		info, _ := hist.Get(n + 1)
		if info.NumVsyncs < 0 {
			return math.NaN()
		}
		y := info.AVDiff
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
		x -= float64(info.NumVsyncs) * vsync
	}
	return (sumX*sumY - float64(num)*sumXY) / (sumX*sumX - float64(num)*sumXX)
}

// audioDriftDecision is the outcome of the audio-side drift update.
type audioDriftDecision struct {
	driftDir     int
	speedFactorA float64
	changed      bool
}

// planAudioResample derives the audio resample speed factor that
// cancels accumulated drift, with hysteresis on the drift direction.
//
// A measured difference opposing the current drift direction resets the
// direction to neutral; beyond half a vsync of difference the direction
// follows the sign of the difference. On any transition the correction
// factor is recomputed: the full correction when pushing against drift,
// or, on a reset to neutral, a regression-estimated compensation that
// holds the drift at zero. The factor is always clamped to the
// configured correction range.
func (e *Engine) planAudioResample(avDiff, vsync, speedFactorV float64,
	hist *queue.History) audioDriftDecision {

	s := &e.State
	maxDrift := vsync / 2
	newDir := s.DriftDir
	if avDiff*float64(-s.DriftDir) >= 0 {
		newDir = 0
	}
	if math.Abs(avDiff) > maxDrift {
		if avDiff >= 0 {
			newDir = 1
		} else {
			newDir = -1
		}
	}

	change := s.DriftDir != newDir
	if newDir == 0 && !change {
		return audioDriftDecision{driftDir: newDir, speedFactorA: s.SpeedFactorA}
	}
	if change {
		slogger().Debug("display sync audio drift direction", "dir", newDir)
	}

	maxCorrect := e.Cfg.MaxAudioChangePct / 100
	audioFactor := 1 + maxCorrect*float64(-newDir)

	if newDir == 0 {
		// When resetting, pick a speed that compensates the measured
		// long-term drift instead of oscillating around it.
		drift := computeAudioDrift(hist, vsync)
		if !math.IsNaN(drift) && !math.IsInf(drift, 0) && drift != 0 {
			other := s.PlaybackSpeed * speedFactorV
			audioFactor = (s.AudioSpeed() - drift) / other
			slogger().Debug("audio drift compensation", "factor", audioFactor)
		}
	}

	audioFactor = clamp(audioFactor, 1-maxCorrect, 1+maxCorrect)
	return audioDriftDecision{
		driftDir:     newDir,
		speedFactorA: audioFactor * speedFactorV,
		changed:      true,
	}
}
