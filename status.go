package present

// Status is the outcome of one WriteFrame step, telling the playback
// loop what to do next.
type Status int

const (
	// StatusError indicates an unrecoverable pipeline error.
	StatusError Status = iota

	// StatusEOF indicates the stream ended and all frames drained.
	StatusEOF

	// StatusProgress indicates work was done and the loop should call
	// again without sleeping.
	StatusProgress

	// StatusNewFrame indicates a frame bundle was handed to the sink.
	StatusNewFrame

	// StatusWait indicates nothing can proceed right now; the loop
	// should sleep until woken by the sink or audio clock.
	StatusWait

	// StatusReconfig indicates the stream format changed and the
	// output chain was reconfigured.
	StatusReconfig
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusEOF:
		return "eof"
	case StatusProgress:
		return "progress"
	case StatusNewFrame:
		return "new-frame"
	case StatusWait:
		return "wait"
	case StatusReconfig:
		return "reconfig"
	default:
		return "unknown"
	}
}
