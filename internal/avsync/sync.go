package avsync

import (
	"math"

	"github.com/gogpu/present/internal/queue"
)

// Engine combines the sync configuration with the continuous timing
// state. All methods are driven from the single playback thread.
type Engine struct {
	Cfg   Config
	State State
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{Cfg: cfg, State: NewState()}
}

// Reset wipes the continuous state, e.g. on seek or reconfiguration.
func (e *Engine) Reset() { e.State.Reset() }

// OnNewFrame feeds the sync model when a frame becomes the head of the
// presentation queue. frameTime is the (discontinuity-filtered) pts
// step from the previously displayed frame; audioPTS is the written
// audio position, or queue.NoPTS when audio is absent.
//
// playing must be true only once regular playback is established;
// during initial syncing the delay model is left alone.
func (e *Engine) OnNewFrame(frameTime, audioPTS float64, playing bool) {
	s := &e.State
	s.Delay -= frameTime
	if playing {
		s.TimeFrame += frameTime / s.VideoSpeed()
		e.adjustSync(audioPTS, frameTime)
	}
	slogger().Debug("new frame", "frame_time", frameTime)
}

// OnAudioWritten feeds the sync model when audio data is handed to
// the output: Delay tracks how far the written audio runs ahead of
// the displayed video, so the per-frame decrement in OnNewFrame must
// be balanced by the audio side's progress.
func (e *Engine) OnAudioWritten(seconds float64) {
	if seconds > 0 {
		e.State.Delay += seconds
	}
}

// adjustSync nudges the video timing toward the audio timeline. It
// applies 10% of the measured delay per frame, capped so a single frame
// never jumps visibly.
func (e *Engine) adjustSync(audioPTS, frameTime float64) {
	s := &e.State
	if audioPTS == queue.NoPTS || s.VideoPTS == queue.NoPTS {
		return
	}

	aPTS := audioPTS + e.Cfg.AudioDelay - s.Delay
	avDelay := aPTS - s.VideoPTS

	change := avDelay * 0.1
	maxChange := e.Cfg.MaxPTSCorrection
	if maxChange < 0 {
		maxChange = frameTime * 0.1
	}
	change = clamp(change, -maxChange, maxChange)
	s.Delay += change
	s.TotalChange += change

	if s.Active {
		s.TotalChange = 0
	}
}

// UpdateAVDiff recomputes the displayed audio/video difference from the
// actual audio and video positions. offset accounts for frames still
// buffered in the sink. Crossing the desync threshold emits a one-time
// warning; the warning does not repeat until the state is reset.
func (e *Engine) UpdateAVDiff(audioPTS, offset float64, audioPlaying, videoPlaying bool) {
	s := &e.State
	s.LastAVDiff = 0

	if !audioPlaying || !videoPlaying {
		return
	}
	if audioPTS != queue.NoPTS && s.VideoPTS != queue.NoPTS {
		s.LastAVDiff = audioPTS - s.VideoPTS + e.Cfg.AudioDelay + offset
	}

	if math.Abs(s.LastAVDiff) > desyncThreshold && !s.DesyncWarned {
		slogger().Warn("audio/video desynchronisation detected",
			"av_diff", s.LastAVDiff,
			"hint", "possible causes: slow hardware, CPU spikes, broken drivers, broken files")
		s.DesyncWarned = true
	}
}

// UpdateBeforeFrame adjusts the time until the next frame is due,
// before the frame is handed to the sink.
//
// With audio playing, the frame is retimed against the audio buffer
// level. Without audio, a late frame (more than 200 ms behind) is shown
// at normal pacing instead of racing to catch up.
func (e *Engine) UpdateBeforeFrame(bufferedAudio float64, audioPlaying, untimed bool) {
	s := &e.State
	switch {
	case s.Active || e.Cfg.Mode == ModeNone:
		// Display-sync owns the timing.
	case audioPlaying:
		predicted := s.Delay/s.VideoSpeed() + s.TimeFrame
		difference := bufferedAudio - predicted
		if e.Cfg.Autosync > 0 {
			// Smooth inaccurate audio position reports by blending with
			// the value predicted from the previous iteration.
			bufferedAudio = predicted + difference/float64(e.Cfg.Autosync)
		}
		s.TimeFrame = bufferedAudio - s.Delay/s.VideoSpeed()
	default:
		if s.TimeFrame < -0.2 || untimed {
			s.TimeFrame = 0
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
