// Command presentdemo runs the presentation pipeline against a
// synthetic moving-gradient source and a null 60 Hz sink, printing
// the render passes and scheduler state for each frame.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/present"
	"github.com/gogpu/present/internal/avsync"
	"github.com/gogpu/present/internal/gpu"
)

func main() {
	var (
		frames  = flag.Int("frames", 10, "number of frames to present")
		width   = flag.Int("width", 320, "source width")
		height  = flag.Int("height", 240, "source height")
		outW    = flag.Int("out-width", 640, "output width")
		outH    = flag.Int("out-height", 480, "output height")
		fps     = flag.Float64("fps", 24, "source frame rate")
		scale   = flag.String("scale", "lanczos", "scaler kernel")
		dsync   = flag.Bool("display-sync", true, "use display-resample scheduling")
		verbose = flag.Bool("v", false, "log pipeline internals")
	)
	flag.Parse()

	if *verbose {
		present.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	opts := present.DefaultOptions()
	opts.ContainerFPS = *fps
	opts.Render.Scale = *scale
	opts.Target = gpu.Target{W: *outW, H: *outH, Format: gpu.FormatRGBA8}
	if *dsync {
		opts.Sync.Mode = avsync.ModeDisplayResample
	}

	dec := newGradientSource(*width, *height, *fps, *frames)
	sink := &nullSink{vsync: 1.0 / 60}
	audio := &lockedAudio{}

	p, err := present.NewPresenter(gpu.NullDeviceHandle{}, dec, sink, audio, opts)
	if err != nil {
		log.Fatalf("pipeline setup failed: %v", err)
	}
	defer p.Close()

	p.OnFrameAdvance(func() {
		st := p.SyncState()
		audio.pts = st.VideoPTS + 1.0/(*fps)

		fmt.Printf("frame %d  pts %.3f  speed v/a %.5f/%.5f  av_diff %+.4f ms\n",
			len(sink.bundles), st.VideoPTS, st.SpeedFactorV, st.SpeedFactorA,
			st.LastAVDiff*1000)
		for _, pass := range p.PassStats() {
			fmt.Printf("    pass: %s\n", pass.Name)
		}
	})

	for {
		st := p.WriteFrame()
		switch st {
		case present.StatusEOF:
			fmt.Printf("\ndone: %d frames, %d dropped, %d mistimed\n",
				len(sink.bundles), p.DroppedFrames(), p.SyncState().MistimedFrames)
			return
		case present.StatusError:
			log.Fatal("pipeline error")
		}
	}
}

// gradientSource decodes nothing: it synthesizes a gradient that
// slides one pixel per frame.
type gradientSource struct {
	pool   *present.FramePool
	format present.PixelFormat
	fps    float64
	total  int
	next   int
}

func newGradientSource(w, h int, fps float64, total int) *gradientSource {
	return &gradientSource{
		pool:   present.NewFramePool(),
		format: present.PixelFormat{W: w, H: h, Planes: 1, BitDepth: 8},
		fps:    fps,
		total:  total,
	}
}

func (g *gradientSource) Decode() (*present.Frame, present.Status) {
	if g.next >= g.total {
		return nil, present.StatusEOF
	}
	f := g.pool.Get(g.format)
	f.PTS = float64(g.next) / g.fps
	f.Color = present.ColorMetadata{Space: gpu.CSRGB, Levels: gpu.LevelsFull}

	shift := g.next
	for y := 0; y < g.format.H; y++ {
		row := f.Data[0][y*f.Stride[0]:]
		for x := 0; x < g.format.W; x++ {
			row[x*4+0] = byte((x + shift) * 255 / g.format.W)
			row[x*4+1] = byte(y * 255 / g.format.H)
			row[x*4+2] = byte(255 - (x+shift)*255/g.format.W)
			row[x*4+3] = 255
		}
	}
	g.next++
	return f, present.StatusNewFrame
}

func (g *gradientSource) Reconfigure(present.PixelFormat) error { return nil }
func (g *gradientSource) DisableHardwareFastPath() bool         { return false }

// nullSink swallows frames at a fixed 60 Hz refresh.
type nullSink struct {
	vsync   float64
	bundles []*present.Bundle
}

func (s *nullSink) IsReadyForFrame(float64) bool { return true }
func (s *nullSink) QueueFrame(b *present.Bundle) { s.bundles = append(s.bundles, b) }
func (s *nullSink) OutputDelay() float64         { return 0 }
func (s *nullSink) VsyncInterval() float64       { return s.vsync }
func (s *nullSink) RequestedFrames() int         { return 2 }
func (s *nullSink) StillDisplaying() bool        { return false }
func (s *nullSink) HasFrame() bool               { return len(s.bundles) > 0 }

// lockedAudio is an audio clock that tracks video perfectly.
type lockedAudio struct {
	pts float64
}

func (a *lockedAudio) PlayingPTS() float64 { return a.pts }
func (a *lockedAudio) WrittenPTS() float64 { return a.pts }
func (a *lockedAudio) Delay() float64      { return 0 }
func (a *lockedAudio) Playing() bool       { return true }
func (a *lockedAudio) Untimed() bool       { return false }
func (a *lockedAudio) PCM() bool           { return true }
