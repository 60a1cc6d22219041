package present

// Decoder supplies decoded frames. The presenter calls Decode at most
// once per WriteFrame step.
type Decoder interface {
	// Decode returns the next frame, or nil with a status: StatusEOF
	// at stream end, StatusWait when no input is available yet,
	// StatusError on decode failure.
	Decode() (*Frame, Status)

	// Reconfigure rebuilds the decoder output for a new format.
	Reconfigure(format PixelFormat) error

	// DisableHardwareFastPath switches off hardware decoding so a
	// failed reconfiguration can be retried in software. Returns
	// false if the fast path was already off.
	DisableHardwareFastPath() bool
}

// Sink is the display output. All methods are called from the
// playback goroutine.
type Sink interface {
	// IsReadyForFrame reports whether the sink can accept a frame
	// with the given absolute deadline.
	IsReadyForFrame(deadline float64) bool

	// QueueFrame hands over a bundle. The sink must finish reading
	// the frames before returning.
	QueueFrame(b *Bundle)

	// OutputDelay is the time until the most recently queued frame
	// becomes visible, in seconds.
	OutputDelay() float64

	// VsyncInterval is the display refresh period, or <= 0 when
	// unknown. Display-sync scheduling requires it.
	VsyncInterval() float64

	// RequestedFrames is how many frames of lookahead the sink wants
	// per bundle.
	RequestedFrames() int

	// StillDisplaying reports whether previously queued frames are
	// not yet fully displayed; reconfiguration waits for it to
	// become false.
	StillDisplaying() bool

	// HasFrame reports whether the sink currently shows anything.
	HasFrame() bool
}

// AudioClock is the audio side of the sync engine. A pipeline without
// audio passes nil and runs on the wall clock.
type AudioClock interface {
	// PlayingPTS is the stream position currently audible, or
	// queue.NoPTS equivalent (negative infinity) when unknown.
	PlayingPTS() float64

	// WrittenPTS is the stream position up to which audio has been
	// decoded and written, used for initial sync.
	WrittenPTS() float64

	// Delay is the buffered audio ahead of the speakers, in seconds.
	Delay() float64

	// Playing reports normal audio playback.
	Playing() bool

	// Untimed reports a sink that plays as fast as it can (e.g. a
	// file writer); video then follows without pacing.
	Untimed() bool

	// PCM reports whether audio is decodable PCM. Compressed
	// passthrough cannot be resampled for display-sync.
	PCM() bool
}

// SubtitleSource gates frames on subtitle readiness. Optional.
type SubtitleSource interface {
	// UpdateForPTS prepares subtitles for the given video position.
	// Returning false blocks the frame until subtitles are ready.
	UpdateForPTS(pts float64) bool
}
