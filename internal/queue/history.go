package queue

import (
	"math"

	"github.com/gogpu/present/internal/ring"
)

// MaxPastFrames bounds the per-frame timing history. The scheduler only
// ever inspects a short window of it, but the audio drift regression
// benefits from a longer tail.
const MaxPastFrames = 100

// FrameInfo records timing statistics for one already-displayed frame.
type FrameInfo struct {
	// PTS is the frame's presentation timestamp.
	PTS float64

	// Duration is the raw pts difference to the following frame, or -1
	// if unknown (e.g. the last frame before EOF).
	Duration float64

	// ApproxDuration is the smoothed duration, with container timestamp
	// rounding compensated.
	ApproxDuration float64

	// NumVsyncs is the number of display refreshes the frame occupied
	// under display-sync, or -1 if the frame was not display-synced.
	NumVsyncs int

	// AVDiff is the audio/video difference measured when the frame was
	// scheduled. Only meaningful when NumVsyncs >= 0.
	AVDiff float64
}

// History is a bounded newest-first record of displayed frames.
type History struct {
	r *ring.Ring[FrameInfo]
}

// NewHistory creates an empty history with capacity MaxPastFrames.
func NewHistory() *History {
	return &History{r: ring.New[FrameInfo](MaxPastFrames)}
}

// Len returns the number of recorded frames.
func (h *History) Len() int { return h.r.Len() }

// Push records info for a newly scheduled frame as entry 0.
func (h *History) Push(info FrameInfo) { h.r.PushFront(info) }

// Get returns the i-th most recent entry; 0 is the current frame.
func (h *History) Get(i int) (FrameInfo, bool) { return h.r.Get(i) }

// Front returns the entry for the current frame. It returns a zero
// FrameInfo if the history is empty.
func (h *History) Front() FrameInfo {
	info, _ := h.r.Get(0)
	return info
}

// SetFront replaces the entry for the current frame.
func (h *History) SetFront(info FrameInfo) { h.r.Set(0, info) }

// Clear drops all recorded history.
func (h *History) Clear() { h.r.Clear() }

// AverageDuration returns the mean approximate duration across the
// recorded frames, ignoring entries with unknown durations. Returns 0
// if nothing usable is recorded.
func (h *History) AverageDuration() float64 {
	total := 0.0
	num := 0
	for i := 0; i < h.r.Len(); i++ {
		dur := h.r.At(i).ApproxDuration
		if dur <= 0 {
			continue
		}
		total += dur
		num++
	}
	if num == 0 {
		return 0
	}
	return total / float64(num)
}

// timestampTolerance absorbs container timestamp rounding. Matroska
// rounds timestamps to 1 ms; anything beyond 1.1 ms is treated as a real
// duration difference rather than rounding noise.
const timestampTolerance = 0.0011

// CalcDuration determines the raw and approximate duration of the
// current frame (entry 0) and stores them in place.
//
// nextPTS is the pts of the upcoming frame, or NoPTS if unknown.
// containerFPS is the container-reported frame rate, or <= 0 if unknown.
func (h *History) CalcDuration(nextPTS, containerFPS float64) {
	if h.r.Len() == 0 {
		return
	}
	front := h.Front()

	demuxDuration := -1.0
	if containerFPS > 0 {
		demuxDuration = 1.0 / containerFPS
	}

	duration := -1.0
	if nextPTS != NoPTS && front.PTS != NoPTS && nextPTS >= front.PTS {
		duration = nextPTS - front.PTS
	} else if demuxDuration >= 0.1 {
		// E.g. the last frame on EOF. Only use the container rate if
		// it's significant.
		duration = demuxDuration
	}

	// Un-round the duration by averaging past raw durations that agree
	// within the rounding tolerance. Outliers end the run.
	total := 0.0
	numDur := 0
	for i := 1; i < h.r.Len(); i++ {
		dur := h.r.At(i).Duration
		if dur <= 0 || math.Abs(dur-duration) >= timestampTolerance {
			break
		}
		total += dur
		numDur++
	}
	approx := duration
	if numDur > 0 {
		approx = total / float64(numDur)
	}

	// If the container frame rate fits the evidence, just take it. Even
	// if each timestamp is within tolerance the sum can drift when the
	// container rate is itself rounded.
	if demuxDuration > 0 &&
		math.Abs(duration-demuxDuration) < timestampTolerance &&
		math.Abs(total-demuxDuration*float64(numDur)) < timestampTolerance {
		approx = demuxDuration
	}

	front.Duration = duration
	front.ApproxDuration = approx
	h.SetFront(front)
}
