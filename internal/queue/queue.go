// Package queue implements the presentation queue of the video pipeline:
// a small lookahead of decoded-but-undisplayed frames, ordered by pts,
// plus a bounded history of per-frame timing statistics.
package queue

import "math"

// NoPTS marks an unknown presentation timestamp.
var NoPTS = math.Inf(-1)

// MaxQueuedFrames is the capacity of the lookahead queue. Sinks may ask
// for at most MaxQueuedFrames-1 frames of lookahead.
const MaxQueuedFrames = 8

// discontinuityTolerance is the largest pts step, in seconds, accepted
// as a regular frame duration. Steps outside (0, tolerance] are treated
// as timestamp discontinuities.
const discontinuityTolerance = 15.0

// Queue is the bounded lookahead of not-yet-displayed frames together
// with the timing history of already-displayed ones.
//
// Queue is generic over the frame type so it can be tested without
// dragging in image buffers; the pipeline instantiates it with its own
// frame handles. The queue owns the frames it holds: a frame added via
// Add is released either by Shift handing it back to the caller or by
// Reset invoking the release callback.
type Queue[F any] struct {
	pts  func(F) float64
	next []F
	past *History
}

// New creates an empty queue. pts extracts the presentation timestamp
// from a frame.
func New[F any](pts func(F) float64) *Queue[F] {
	return &Queue[F]{
		pts:  pts,
		next: make([]F, 0, MaxQueuedFrames),
		past: NewHistory(),
	}
}

// Len returns the number of queued (undisplayed) frames.
func (q *Queue[F]) Len() int { return len(q.next) }

// Head returns the next frame due for display. ok is false if the queue
// is empty.
func (q *Queue[F]) Head() (f F, ok bool) {
	if len(q.next) == 0 {
		return f, false
	}
	return q.next[0], true
}

// Frames returns up to n queued frames starting at the head. The
// returned slice aliases internal storage and is only valid until the
// next queue mutation.
func (q *Queue[F]) Frames(n int) []F {
	if n > len(q.next) {
		n = len(q.next)
	}
	return q.next[:n]
}

// NextPTS returns the pts of the frame after the head, or NoPTS.
// The scheduler uses it to derive the head frame's duration.
func (q *Queue[F]) NextPTS() float64 {
	if len(q.next) < 2 {
		return NoPTS
	}
	return q.pts(q.next[1])
}

// ReqFrames returns how many frames should be queued before one is
// pushed to the sink.
//
// On EOF all frames must drain, so a single frame suffices. On the very
// first frame output should happen as quickly as possible, except that
// display-sync needs a second frame for a correct duration. Otherwise
// the sink's requested lookahead applies, clamped to [2, cap-1].
func (q *Queue[F]) ReqFrames(eof, firstFrame, displaySync bool, sinkReq int) int {
	if eof {
		return 1
	}
	if firstFrame {
		if displaySync {
			return 2
		}
		return 1
	}
	if sinkReq < 2 {
		sinkReq = 2
	}
	if sinkReq > MaxQueuedFrames-1 {
		sinkReq = MaxQueuedFrames - 1
	}
	return sinkReq
}

// NeedsNewFrame reports whether there is room for another decoded frame
// per the given requested lookahead.
func (q *Queue[F]) NeedsNewFrame(req int) bool {
	return len(q.next) < req
}

// HaveEnough reports whether enough frames are queued to push one to
// the sink.
func (q *Queue[F]) HaveEnough(req int) bool {
	return len(q.next) >= req
}

// Add appends a frame. The caller must have checked NeedsNewFrame; a
// full queue drops the frame silently and reports false.
//
// Frames must arrive in pts order. becameHead is true if the frame is
// now the head of the queue, in which case the caller must feed the
// sync engine via FrameTime.
func (q *Queue[F]) Add(f F) (becameHead bool, ok bool) {
	if len(q.next) >= MaxQueuedFrames {
		return false, false
	}
	q.next = append(q.next, f)
	return len(q.next) == 1, true
}

// FrameTime computes the nominal duration from the previously displayed
// pts to the head frame. A non-monotonic or implausibly large step is a
// discontinuity: a warning is logged and the frame time is forced to 0
// so that the sync model resets instead of propagating an error.
func (q *Queue[F]) FrameTime(prevPTS float64) (frameTime float64, discontinuity bool) {
	if len(q.next) == 0 || prevPTS == NoPTS {
		return 0, false
	}
	pts := q.pts(q.next[0])
	frameTime = pts - prevPTS
	if frameTime <= 0 || frameTime >= discontinuityTolerance {
		slogger().Warn("invalid video timestamp",
			"prev_pts", prevPTS, "pts", pts)
		return 0, true
	}
	return frameTime, false
}

// Shift removes and returns the head frame after it has been handed to
// the sink. ok is false if the queue was empty.
func (q *Queue[F]) Shift() (f F, ok bool) {
	if len(q.next) == 0 {
		return f, false
	}
	f = q.next[0]
	copy(q.next, q.next[1:])
	var zero F
	q.next[len(q.next)-1] = zero
	q.next = q.next[:len(q.next)-1]
	return f, true
}

// History returns the per-frame timing history.
func (q *Queue[F]) History() *History { return q.past }

// Reset drops all queued frames and the timing history. release is
// called for every dropped frame; it may be nil.
func (q *Queue[F]) Reset(release func(F)) {
	for i, f := range q.next {
		if release != nil {
			release(f)
		}
		var zero F
		q.next[i] = zero
	}
	q.next = q.next[:0]
	q.past.Clear()
}
