package present

// MaxBundleFrames is the largest lookahead a Bundle carries. Sinks
// that interpolate need the frame after the current one; more than a
// few frames of lookahead has no scheduling value.
const MaxBundleFrames = 4

// Bundle is the unit handed to the sink: the frame due for display,
// some lookahead, and the timing that positions it on the display
// timeline.
type Bundle struct {
	// Frames holds the current frame first, then lookahead. The
	// frames stay owned by the pipeline; the sink must not retain
	// them past QueueFrame.
	Frames []*Frame

	// PTS is the absolute display deadline on the caller's monotonic
	// clock, in seconds.
	PTS float64

	// Duration is the nominal frame duration, adjusted for playback
	// speed; -1 if unknown.
	Duration float64

	// DisplaySynced is true when the frame is timed in vsync counts
	// rather than by the deadline.
	DisplaySynced bool

	// NumVsyncs is the number of display refreshes the frame should
	// occupy under display-sync.
	NumVsyncs int

	// VsyncInterval, VsyncOffset and IdealFrameDuration parameterize
	// sink-side temporal interpolation.
	VsyncInterval      float64
	VsyncOffset        float64
	IdealFrameDuration float64

	// Still marks a frame shown indefinitely (cover art, last frame
	// after EOF while paused).
	Still bool
}
