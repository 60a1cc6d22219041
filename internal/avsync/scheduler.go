package avsync

import (
	"math"

	"github.com/gogpu/present/internal/queue"
)

// ScheduleInput carries everything the display-sync scheduler reads for
// one frame, sampled by the caller from its collaborators.
type ScheduleInput struct {
	// VsyncInterval is the display refresh period in seconds; <= 0 when
	// unknown.
	VsyncInterval float64

	// ApproxDuration is the current frame's smoothed duration.
	ApproxDuration float64

	// History is the timing record of displayed frames.
	History *queue.History

	// AudioPTS is the currently audible audio position, or queue.NoPTS.
	AudioPTS float64

	// AudioPlaying is true while the audio stream plays normally.
	AudioPlaying bool

	// VideoPlaying is true once regular video playback is established.
	VideoPlaying bool

	// SpdifPassthrough is true when audio bypasses PCM processing, which
	// rules out audio resampling.
	SpdifPassthrough bool

	// SinkDelay is the sink's current output latency (time until the
	// most recently queued frame becomes visible), in seconds.
	SinkDelay float64
}

// Decision is the outcome of one scheduling step. It contains both the
// frame-facing values (vsync count, offsets) and the state updates to
// apply via Commit, so that Schedule itself stays free of hidden
// mutation.
type Decision struct {
	// DisplaySynced is true when the frame is timed in vsync counts.
	DisplaySynced bool

	// Broken is set when the scheduler latched into the broken state
	// during this step.
	Broken bool

	// NumVsyncs is the number of refreshes the frame occupies (after
	// drop/repeat correction). Zero requests a drop.
	NumVsyncs int

	// DropRepeat is the applied correction: <0 dropped, >0 repeated.
	DropRepeat int

	// VsyncInterval, VsyncOffset and IdealFrameDuration parameterize
	// sink-side interpolation.
	VsyncInterval      float64
	VsyncOffset        float64
	IdealFrameDuration float64

	// SpeedFactorV/SpeedFactorA are the resulting speed multipliers.
	SpeedFactorV float64
	SpeedFactorA float64

	// driftDir/driftChanged carry the audio drift hysteresis update.
	driftDir     int
	driftChanged bool

	// syncError is the updated rounding carry.
	syncError float64

	// avDiff is the audio/video difference measured for this frame.
	avDiff float64

	// timeFrame is the fallback frame deadline should display-sync
	// disengage next frame.
	timeFrame float64
}

// maxDisplaySyncDuration is the longest frame duration the display-sync
// scheduler will quantize; beyond this (e.g. stills), timer scheduling
// behaves better.
const maxDisplaySyncDuration = 0.5

// dropRepeatThreshold is the smallest av difference that triggers
// drop/repeat correction; smaller values are jitter.
const dropRepeatThreshold = 0.020

// Schedule runs the display-sync state machine for the frame currently
// at the head of the queue. It does not modify the engine state; apply
// the returned Decision with Commit.
func (e *Engine) Schedule(in ScheduleInput) Decision {
	s := &e.State
	mode := e.Cfg.Mode

	off := Decision{
		SpeedFactorV: 1,
		SpeedFactorA: 1,
		avDiff:       e.measureAVDiff(in, e.offUntimedOffset()),
		timeFrame:    s.TimeFrame,
	}

	if !mode.DisplaySync() || s.Broken {
		return off
	}
	if mode.resample() && in.SpdifPassthrough {
		return off
	}
	vsync := in.VsyncInterval
	if vsync <= 0 {
		return off
	}

	adjusted := math.Max(0, in.ApproxDuration) / s.PlaybackSpeed
	if adjusted > maxDisplaySyncDuration {
		return off
	}

	speedFactorV := 1.0
	if mode != ModeDisplayVdrop {
		best := findBestSpeed(in.History, vsync, s.PlaybackSpeed)
		// If no suitable factor exists, play at normal speed.
		if math.Abs(best-1.0) <= e.Cfg.MaxVideoChangePct/100 {
			speedFactorV = best
		}
	}

	avDiff := s.LastAVDiff
	if math.Abs(avDiff) > desyncThreshold {
		off.Broken = true
		return off
	}

	// Determine for how many vsyncs the frame should be displayed, e.g.
	// 2 for 30 fps on a 60 Hz display, possibly 0 if the video rate
	// exceeds the display rate. The rounding remainder is carried so it
	// cancels over consecutive frames instead of accumulating.
	frameDuration := adjusted / speedFactorV
	ratio := (frameDuration + s.DisplaySyncError) / vsync
	numVsyncs := int(math.Round(ratio))
	if numVsyncs < 0 {
		numVsyncs = 0
	}
	prevError := s.DisplaySyncError
	syncError := prevError + frameDuration - float64(numVsyncs)*vsync

	// If we are too far ahead or behind, drop or repeat frames. We can
	// drop at most all scheduled vsyncs; repetition is capped at 10x to
	// keep exceptional situations from causing havoc.
	dropRepeat := 0
	if e.Cfg.AllowFrameDrop && mode.allowDropRepeat() &&
		math.Abs(avDiff) >= dropRepeatThreshold && math.Abs(avDiff)/vsync >= 1 {
		dropRepeat = int(-avDiff / vsync) // round towards 0
	}
	dropRepeat = clampInt(dropRepeat, -numVsyncs, numVsyncs*10)
	numVsyncs += dropRepeat

	// Estimate the video position for the av difference measurement.
	// Vsync alignment and pending drop/repeat corrections are known
	// discrepancies; treat them as already compensated.
	timeLeft := in.SinkDelay + prevError + float64(dropRepeat)*vsync

	avDiffNow := e.measureAVDiff(in, timeLeft*s.PlaybackSpeed)

	d := Decision{
		DisplaySynced:      true,
		NumVsyncs:          numVsyncs,
		DropRepeat:         dropRepeat,
		VsyncInterval:      vsync,
		VsyncOffset:        -prevError,
		IdealFrameDuration: frameDuration,
		SpeedFactorV:       speedFactorV,
		SpeedFactorA:       1,
		syncError:          syncError,
		avDiff:             avDiffNow,
		timeFrame:          timeLeft,
	}

	if mode.resample() {
		if in.AudioPlaying {
			ad := e.planAudioResample(avDiffNow, vsync, speedFactorV, in.History)
			d.driftDir = ad.driftDir
			d.driftChanged = ad.changed
			d.SpeedFactorA = ad.speedFactorA
		} else {
			// Nothing to resample; keep audio nominally locked to the
			// adjusted video rate.
			d.driftDir = s.DriftDir
			d.driftChanged = true
			d.SpeedFactorA = speedFactorV
		}
	}

	slogger().Debug("display sync frame",
		"speed_v", speedFactorV, "vsyncs", numVsyncs,
		"duration", adjusted, "ratio", ratio, "carry", syncError)

	return d
}

// offUntimedOffset is the av-diff sink offset used while display-sync
// is inactive.
func (e *Engine) offUntimedOffset() float64 {
	if e.State.TimeFrame > 0 {
		return e.State.TimeFrame * e.State.VideoSpeed()
	}
	return 0
}

// measureAVDiff computes the audio/video difference without touching
// state; the desync warning bookkeeping happens in Commit.
func (e *Engine) measureAVDiff(in ScheduleInput, offset float64) float64 {
	if !in.AudioPlaying || !in.VideoPlaying {
		return 0
	}
	if in.AudioPTS == queue.NoPTS || e.State.VideoPTS == queue.NoPTS {
		return 0
	}
	return in.AudioPTS - e.State.VideoPTS + e.Cfg.AudioDelay + offset
}

// Commit applies a scheduling decision to the engine state and updates
// the history entry for the current frame.
func (e *Engine) Commit(d Decision, hist *queue.History) {
	s := &e.State

	wasActive := s.Active
	if d.Broken {
		s.Broken = true
		slogger().Warn("display sync lost, reverting to audio sync for this session")
	}

	if !d.DisplaySynced {
		s.Active = false
		s.DisplaySyncError = 0
		s.DriftDir = 0
		s.SpeedFactorA = 1
		s.SpeedFactorV = 1
		e.applyAVDiff(d.avDiff)
	} else {
		s.Active = true
		s.DisplaySyncError = d.syncError
		s.SpeedFactorV = d.SpeedFactorV
		if d.driftChanged || !e.Cfg.Mode.resample() {
			s.SpeedFactorA = d.SpeedFactorA
		}
		s.DriftDir = d.driftDir
		if d.DropRepeat != 0 {
			s.MistimedFrames++
		}
		s.TotalChange = 0
		e.applyAVDiff(d.avDiff)

		// A bad guess, only needed if the next frame reverts to audio
		// sync.
		s.TimeFrame = d.timeFrame

		if hist != nil && hist.Len() > 0 {
			front := hist.Front()
			front.NumVsyncs = d.NumVsyncs
			front.AVDiff = s.LastAVDiff
			hist.SetFront(front)
		}
	}

	if wasActive != s.Active {
		slogger().Info("video sync mode", "display_sync", s.Active)
	}
}

func (e *Engine) applyAVDiff(diff float64) {
	s := &e.State
	s.LastAVDiff = diff
	if math.Abs(diff) > desyncThreshold && !s.DesyncWarned {
		slogger().Warn("audio/video desynchronisation detected",
			"av_diff", diff,
			"hint", "possible causes: slow hardware, CPU spikes, broken drivers, broken files")
		s.DesyncWarned = true
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
