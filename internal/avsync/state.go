// Package avsync implements the timing side of the presentation
// pipeline: the audio/video sync engine, the display-sync scheduler and
// the playback speed controller.
//
// All continuous timing state lives in one State struct so the state
// machine's transitions are visible and testable in isolation. The
// scheduler itself is split into a pure Schedule step, which derives a
// Decision from the current State without mutating it, and a Commit
// step which applies the Decision. Calling Schedule twice with the same
// inputs therefore yields identical results.
package avsync

import "github.com/gogpu/present/internal/queue"

// Mode selects how video frame timing is derived.
type Mode int

const (
	// ModeAudio times frames off the audio clock (the default).
	ModeAudio Mode = iota

	// ModeDisplayResample locks frames to display vsync and resamples
	// audio to compensate drift.
	ModeDisplayResample

	// ModeDisplayResampleVdrop is ModeDisplayResample plus video frame
	// dropping when audio runs ahead.
	ModeDisplayResampleVdrop

	// ModeDisplayResampleNone is ModeDisplayResample without any
	// drop/repeat desync compensation.
	ModeDisplayResampleNone

	// ModeDisplayAdrop locks to vsync and drops/duplicates audio data
	// on desync (audio correction handled outside this package).
	ModeDisplayAdrop

	// ModeDisplayVdrop locks to vsync and only drops video frames.
	ModeDisplayVdrop

	// ModeNone performs no sync correction at all.
	ModeNone
)

// String returns the option-style name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeAudio:
		return "audio"
	case ModeDisplayResample:
		return "display-resample"
	case ModeDisplayResampleVdrop:
		return "display-resample-vdrop"
	case ModeDisplayResampleNone:
		return "display-resample-none"
	case ModeDisplayAdrop:
		return "display-adrop"
	case ModeDisplayVdrop:
		return "display-vdrop"
	case ModeNone:
		return "none"
	default:
		return "unknown"
	}
}

// DisplaySync reports whether the mode quantizes frame durations to
// vsync multiples.
func (m Mode) DisplaySync() bool {
	switch m {
	case ModeDisplayResample, ModeDisplayResampleVdrop,
		ModeDisplayResampleNone, ModeDisplayAdrop, ModeDisplayVdrop:
		return true
	}
	return false
}

// resample reports whether audio is resampled to cancel drift.
func (m Mode) resample() bool {
	switch m {
	case ModeDisplayResample, ModeDisplayResampleVdrop, ModeDisplayResampleNone:
		return true
	}
	return false
}

// allowDropRepeat reports whether the scheduler may drop or repeat
// frames to compensate desync.
func (m Mode) allowDropRepeat() bool {
	switch m {
	case ModeDisplayVdrop, ModeDisplayResample, ModeDisplayAdrop,
		ModeDisplayResampleVdrop:
		return true
	}
	return false
}

// Config holds the user-tunable sync parameters.
type Config struct {
	// Mode selects the scheduling mode.
	Mode Mode

	// AudioDelay shifts the audio timeline, in seconds.
	AudioDelay float64

	// MaxPTSCorrection caps the per-frame sync nudge, in seconds. A
	// negative value means 10% of the frame duration.
	MaxPTSCorrection float64

	// MaxVideoChangePct is the largest accepted deviation of the video
	// speed factor from 1.0, in percent.
	MaxVideoChangePct float64

	// MaxAudioChangePct is the largest audio resample speed correction,
	// in percent.
	MaxAudioChangePct float64

	// AllowFrameDrop enables drop/repeat desync compensation in the
	// display-sync scheduler.
	AllowFrameDrop bool

	// Autosync smooths the reported audio position by this factor; 0
	// disables smoothing.
	Autosync int
}

// DefaultConfig returns the default sync parameters.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeAudio,
		MaxPTSCorrection:  -1,
		MaxVideoChangePct: 1,
		MaxAudioChangePct: 0.125,
		AllowFrameDrop:    true,
	}
}

// desyncThreshold is the audio/video difference, in seconds, beyond
// which sync is considered lost: the one-time desync warning fires, and
// an active display-sync scheduler latches into the broken state.
const desyncThreshold = 0.5

// State is the complete continuous timing state of the pipeline. It is
// reset atomically on seek, stream reconfiguration, and still-frame
// transitions.
type State struct {
	// Delay is the accumulated video timing correction relative to the
	// audio clock, in seconds.
	Delay float64

	// TimeFrame is the remaining time until the current frame is due.
	TimeFrame float64

	// VideoPTS is the pts of the most recently displayed frame, or
	// queue.NoPTS before the first frame.
	VideoPTS float64

	// PlaybackSpeed is the user-requested playback speed multiplier.
	PlaybackSpeed float64

	// SpeedFactorV is the display-sync video speed multiplier.
	SpeedFactorV float64

	// SpeedFactorA is the display-sync audio resample multiplier.
	SpeedFactorA float64

	// DisplaySyncError is the fractional vsync rounding carry.
	DisplaySyncError float64

	// DriftDir is the audio drift hysteresis direction: -1, 0 or 1.
	DriftDir int

	// LastAVDiff is the most recently measured audio/video difference.
	LastAVDiff float64

	// TotalChange accumulates applied sync corrections (diagnostic).
	TotalChange float64

	// Active is true while display-sync scheduling is in effect.
	Active bool

	// Broken latches when display-sync lost sync beyond recovery; it is
	// cleared only by Reset.
	Broken bool

	// DesyncWarned records that the one-time desync warning was shown.
	DesyncWarned bool

	// MistimedFrames counts frames that needed drop/repeat correction.
	MistimedFrames int64
}

// NewState returns a State ready for playback at normal speed.
func NewState() State {
	s := State{}
	s.Reset()
	s.PlaybackSpeed = 1
	return s
}

// Reset returns all continuous state to its initial value. The playback
// speed survives, matching user expectation across seeks.
func (s *State) Reset() {
	speed := s.PlaybackSpeed
	*s = State{
		VideoPTS:      queue.NoPTS,
		PlaybackSpeed: speed,
		SpeedFactorV:  1,
		SpeedFactorA:  1,
	}
	if s.PlaybackSpeed == 0 {
		s.PlaybackSpeed = 1
	}
}

// VideoSpeed is the effective video playback rate.
func (s *State) VideoSpeed() float64 { return s.PlaybackSpeed * s.SpeedFactorV }

// AudioSpeed is the effective audio playback rate.
func (s *State) AudioSpeed() float64 { return s.PlaybackSpeed * s.SpeedFactorA }
