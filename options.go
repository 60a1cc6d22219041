package present

import (
	"github.com/gogpu/present/internal/avsync"
	"github.com/gogpu/present/internal/gpu"
)

// Options configures a Presenter. The zero value is not useful; start
// from DefaultOptions.
type Options struct {
	// Sync holds the audio/video sync and display-sync parameters.
	Sync avsync.Config

	// Render holds the renderer configuration.
	Render gpu.RendererConfig

	// Target is the output framebuffer description. A zero width or
	// height takes the stream size.
	Target gpu.Target

	// ContainerFPS is the container-reported frame rate, or <= 0 if
	// unknown. Used to snap rounded timestamps and to derive the last
	// frame's duration at EOF.
	ContainerFPS float64

	// Still enables cover-art mode: a single frame is shown and the
	// stream then reports EOF.
	Still bool

	// Clock returns the current time on the caller's monotonic clock,
	// in seconds. Nil uses a wall-clock default; tests inject their
	// own.
	Clock func() float64
}

// DefaultOptions returns the standard configuration: audio-clock
// sync, lanczos scaling with fruit dithering.
func DefaultOptions() Options {
	return Options{
		Sync:   avsync.DefaultConfig(),
		Render: gpu.DefaultRendererConfig(),
	}
}
