// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package present

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/present/internal/avsync"
	"github.com/gogpu/present/internal/gpu"
	"github.com/gogpu/present/internal/queue"
)

// ErrReconfigFailed is returned when the output chain could not be
// rebuilt for a new stream format, even after falling back to
// software decoding.
var ErrReconfigFailed = errors.New("present: output reconfiguration failed")

// frameDueTolerance is how early a frame may be handed to the sink
// under timer scheduling, in seconds.
const frameDueTolerance = 0.001

// Presenter drives the presentation pipeline. Construct one per video
// stream and call WriteFrame from the playback loop; all methods must
// be called from that one goroutine except SetLogger.
type Presenter struct {
	opts  Options
	dec   Decoder
	sink  Sink
	audio AudioClock
	subs  SubtitleSource

	q    *queue.Queue[*Frame]
	sync *avsync.Engine
	dev  *gpu.Device
	ren  *gpu.Renderer

	clock    func() float64
	lastTime float64

	format     PixelFormat
	haveFormat bool

	// pending holds the frame that triggered a mid-stream format
	// change until the queue drains and the sink goes idle.
	pending *Frame

	lastWritten float64

	eof        bool
	firstFrame bool
	playing    bool
	paused     bool
	stepFrames int
	stillSent  bool

	lastStats []gpu.PassStat
	dropped   int64

	onFrameAdvance func()
	onReconfig     func()
}

// NewPresenter creates a presenter rendering through the given device
// handle. audio may be nil for a silent stream; the pipeline then
// paces frames on the wall clock.
func NewPresenter(handle gpu.DeviceHandle, dec Decoder, sink Sink, audio AudioClock, opts Options) (*Presenter, error) {
	if dec == nil || sink == nil {
		return nil, errors.New("present: decoder and sink are required")
	}
	dev := gpu.NewDevice(handle, gpu.DefaultLimits())
	ren, err := gpu.NewRenderer(dev, opts.Render)
	if err != nil {
		return nil, err
	}
	if audio == nil {
		audio = silentClock{}
	}
	clock := opts.Clock
	if clock == nil {
		start := time.Now()
		clock = func() float64 { return time.Since(start).Seconds() }
	}
	p := &Presenter{
		opts:        opts,
		dec:         dec,
		sink:        sink,
		audio:       audio,
		q:           queue.New(func(f *Frame) float64 { return f.PTS }),
		sync:        avsync.NewEngine(opts.Sync),
		dev:         dev,
		ren:         ren,
		clock:       clock,
		lastWritten: queue.NoPTS,
		firstFrame:  true,
	}
	p.lastTime = clock()
	return p, nil
}

// Close releases all pipeline resources. Queued frames are released
// to their pool.
func (p *Presenter) Close() {
	p.q.Reset(func(f *Frame) { f.Release() })
	if p.pending != nil {
		p.pending.Release()
		p.pending = nil
	}
	p.ren.Close()
}

// SetSubtitles attaches a subtitle source gating frame output.
func (p *Presenter) SetSubtitles(s SubtitleSource) { p.subs = s }

// OnFrameAdvance registers a callback fired after each frame handed
// to the sink.
func (p *Presenter) OnFrameAdvance(fn func()) { p.onFrameAdvance = fn }

// OnReconfig registers a callback fired after each output
// reconfiguration.
func (p *Presenter) OnReconfig(fn func()) { p.onReconfig = fn }

// PassStats returns the render passes of the most recent frame.
func (p *Presenter) PassStats() []gpu.PassStat { return p.lastStats }

// DroppedFrames returns the number of frames dropped by the
// display-sync scheduler.
func (p *Presenter) DroppedFrames() int64 { return p.dropped }

// SyncState returns a copy of the continuous timing state, for status
// displays.
func (p *Presenter) SyncState() avsync.State { return p.sync.State }

// SetPaused pauses or resumes frame output. The current frame stays
// on screen while paused.
func (p *Presenter) SetPaused(paused bool) {
	p.paused = paused
	if !paused {
		p.stepFrames = 0
	}
}

// Step advances n frames and then pauses, for frame stepping.
func (p *Presenter) Step(n int) {
	if n <= 0 {
		return
	}
	p.paused = false
	p.stepFrames = n
}

// SetSpeed changes the playback speed multiplier.
func (p *Presenter) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	p.sync.State.PlaybackSpeed = speed
}

// Reset returns the pipeline to its initial state, e.g. on seek. All
// queued frames are released and the continuous sync state is wiped
// atomically; playback speed survives.
func (p *Presenter) Reset() {
	p.q.Reset(func(f *Frame) { f.Release() })
	if p.pending != nil {
		p.pending.Release()
		p.pending = nil
	}
	p.sync.Reset()
	p.ren.Invalidate()
	p.lastWritten = queue.NoPTS
	p.eof = false
	p.firstFrame = true
	p.playing = false
	p.stillSent = false
	p.lastTime = p.clock()
	slogger().Debug("pipeline reset")
}

// Reconfig rebuilds the decoder output and the render chain for a new
// stream format. If the decoder rejects the format, the hardware fast
// path is disabled and the reconfiguration retried once in software
// before giving up.
func (p *Presenter) Reconfig(format PixelFormat) error {
	if !format.Valid() {
		return fmt.Errorf("%w: bad format %s", ErrReconfigFailed, format)
	}
	if err := p.dec.Reconfigure(format); err != nil {
		if !p.dec.DisableHardwareFastPath() {
			return fmt.Errorf("%w: %v", ErrReconfigFailed, err)
		}
		slogger().Warn("output reconfig failed, retrying without hardware decoding",
			"format", format.String(), "err", err)
		if err := p.dec.Reconfigure(format); err != nil {
			return fmt.Errorf("%w: %v", ErrReconfigFailed, err)
		}
	}
	p.format = format
	p.haveFormat = true
	p.ren.Invalidate()
	slogger().Info("video output reconfigured", "format", format.String())
	if p.onReconfig != nil {
		p.onReconfig()
	}
	return nil
}

// WriteFrame runs one iteration of the presentation loop: decode at
// most one frame into the queue, update timing against the audio
// clock, schedule the head frame and hand it to the sink. The
// returned status tells the loop whether to call again immediately
// (StatusProgress, StatusNewFrame, StatusReconfig), sleep
// (StatusWait) or stop (StatusEOF, StatusError).
func (p *Presenter) WriteFrame() Status {
	now := p.clock()
	if p.playing {
		p.sync.State.TimeFrame -= now - p.lastTime
	}
	p.lastTime = now

	// While paused, keep whatever is on screen.
	if p.paused && p.stepFrames == 0 && p.sink.HasFrame() {
		return StatusWait
	}

	if st, done := p.fillQueue(); done {
		return st
	}

	// Feed audio progress into the delay model before retiming.
	if w := p.audio.WrittenPTS(); w != queue.NoPTS && p.audio.Playing() {
		if p.lastWritten != queue.NoPTS {
			p.sync.OnAudioWritten(w - p.lastWritten)
		}
		p.lastWritten = w
	}

	p.sync.UpdateBeforeFrame(p.audio.Delay(), p.audio.Playing(), p.audio.Untimed())

	head, ok := p.q.Head()
	if !ok {
		return StatusProgress
	}

	if p.subs != nil && !p.subs.UpdateForPTS(head.PTS) {
		return StatusWait
	}

	// Under timer scheduling a frame that is not due yet waits; the
	// display-sync scheduler times in vsyncs instead.
	timeLeft := math.Max(0, p.sync.State.TimeFrame)
	if !p.sync.State.Active && !p.firstFrame && timeLeft > frameDueTolerance {
		return StatusWait
	}
	deadline := now + timeLeft

	if !p.sink.IsReadyForFrame(deadline) {
		return StatusWait
	}

	hist := p.q.History()
	hist.Push(queue.FrameInfo{PTS: head.PTS, Duration: -1, ApproxDuration: -1, NumVsyncs: -1})
	hist.CalcDuration(p.q.NextPTS(), p.opts.ContainerFPS)

	p.sync.State.VideoPTS = head.PTS
	p.sync.UpdateAVDiff(p.audio.PlayingPTS(),
		p.sink.OutputDelay()*p.sync.State.VideoSpeed(),
		p.audio.Playing(), p.playing)

	d := p.sync.Schedule(avsync.ScheduleInput{
		VsyncInterval:    p.sink.VsyncInterval(),
		ApproxDuration:   hist.Front().ApproxDuration,
		History:          hist,
		AudioPTS:         p.audio.PlayingPTS(),
		AudioPlaying:     p.audio.Playing(),
		VideoPlaying:     p.playing,
		SpdifPassthrough: !p.audio.PCM(),
		SinkDelay:        p.sink.OutputDelay(),
	})
	p.sync.Commit(d, hist)

	if d.DisplaySynced && d.NumVsyncs == 0 {
		f, _ := p.q.Shift()
		f.Release()
		p.dropped++
		p.afterFrame()
		slogger().Debug("dropped frame", "pts", head.PTS, "total", p.dropped)
		return StatusProgress
	}

	b := p.buildBundle(d, deadline, hist)
	p.renderHead(b, d)
	p.sink.QueueFrame(b)

	f, _ := p.q.Shift()
	f.Release()
	p.afterFrame()
	if p.opts.Still {
		p.stillSent = true
	}
	if p.onFrameAdvance != nil {
		p.onFrameAdvance()
	}
	return StatusNewFrame
}

// afterFrame updates the playback flags once a head frame has been
// consumed, whether displayed or dropped.
func (p *Presenter) afterFrame() {
	p.firstFrame = false
	p.playing = true
	if p.stepFrames > 0 {
		p.stepFrames--
		if p.stepFrames == 0 {
			p.paused = true
		}
	}
}

// fillQueue decodes at most one frame and reports whether WriteFrame
// should return early with the given status.
func (p *Presenter) fillQueue() (Status, bool) {
	req := p.reqFrames()

	if p.pending == nil && !p.eof && p.q.NeedsNewFrame(req) {
		if p.opts.Still && p.stillSent {
			// Cover art: one frame, then the stream is over.
			p.eof = true
		} else {
			f, st := p.dec.Decode()
			switch st {
			case StatusEOF:
				p.eof = true
			case StatusError:
				return StatusError, true
			case StatusNewFrame:
				if rs, handled := p.acceptFrame(f); handled {
					return rs, true
				}
			default:
				// Decoder has nothing yet; output what we have, or
				// pass the wait through.
				if p.q.Len() == 0 {
					return st, true
				}
			}
		}
	}

	// A held format-change frame enters once the queue has drained
	// and the sink finished displaying the old format.
	if p.pending != nil && p.q.Len() == 0 {
		if p.sink.StillDisplaying() {
			return StatusWait, true
		}
		f := p.pending
		p.pending = nil
		if err := p.Reconfig(f.Format); err != nil {
			f.Release()
			slogger().Error("format change failed", "err", err)
			return StatusError, true
		}
		if rs, handled := p.acceptFrame(f); handled {
			return rs, true
		}
		return StatusReconfig, true
	}

	if !p.q.HaveEnough(p.reqFrames()) {
		if p.eof && p.q.Len() == 0 {
			return StatusEOF, true
		}
		return StatusProgress, true
	}
	return StatusProgress, false
}

// reqFrames is the current queue fill target.
func (p *Presenter) reqFrames() int {
	displaySync := p.opts.Sync.Mode.DisplaySync() && !p.sync.State.Broken
	draining := p.eof || p.pending != nil
	return p.q.ReqFrames(draining, p.firstFrame, displaySync, p.sink.RequestedFrames())
}

// acceptFrame validates a decoded frame against the current format
// and queues it. handled is true when WriteFrame should return rs.
func (p *Presenter) acceptFrame(f *Frame) (rs Status, handled bool) {
	if f == nil || f.Released() {
		return StatusError, true
	}
	if p.haveFormat && !f.Format.Equal(p.format) {
		slogger().Info("video format change",
			"from", p.format.String(), "to", f.Format.String())
		p.pending = f
		return StatusProgress, false
	}
	if !p.haveFormat {
		if err := p.Reconfig(f.Format); err != nil {
			f.Release()
			slogger().Error("initial output config failed", "err", err)
			return StatusError, true
		}
	}
	becameHead, ok := p.q.Add(f)
	if !ok {
		f.Release()
		slogger().Warn("frame queue overflow", "pts", f.PTS)
		return StatusProgress, false
	}
	if becameHead {
		frameTime, _ := p.q.FrameTime(p.sync.State.VideoPTS)
		p.sync.OnNewFrame(frameTime, p.audio.WrittenPTS(), p.playing)
	}
	return StatusProgress, false
}

// buildBundle assembles the sink hand-off for the current head frame.
func (p *Presenter) buildBundle(d avsync.Decision, deadline float64, hist *queue.History) *Bundle {
	n := p.sink.RequestedFrames()
	if n < 1 {
		n = 1
	}
	if n > MaxBundleFrames {
		n = MaxBundleFrames
	}
	frames := p.q.Frames(n)

	b := &Bundle{
		Frames:             append([]*Frame(nil), frames...),
		PTS:                deadline,
		Duration:           -1,
		DisplaySynced:      d.DisplaySynced,
		NumVsyncs:          d.NumVsyncs,
		VsyncInterval:      d.VsyncInterval,
		VsyncOffset:        d.VsyncOffset,
		IdealFrameDuration: d.IdealFrameDuration,
		Still:              p.opts.Still || (p.eof && p.q.Len() == 1),
	}
	if dur := hist.Front().ApproxDuration; dur > 0 {
		b.Duration = dur / p.sync.State.VideoSpeed()
	}
	return b
}

// renderHead runs the render graph for the bundle's head frame and
// records the pass stats. Rendering failure produces a diagnostic
// frame, never an aborted loop.
func (p *Presenter) renderHead(b *Bundle, d avsync.Decision) {
	head := b.Frames[0]
	sf, texs, err := p.uploadFrame(head)
	if err != nil {
		slogger().Error("frame upload failed", "pts", head.PTS, "err", err)
		return
	}

	t := p.target(head)
	var res *gpu.FrameResult
	if p.opts.Render.Interpolate && d.DisplaySynced && len(b.Frames) > 1 {
		next, ntexs, nerr := p.uploadFrame(b.Frames[1])
		if nerr == nil {
			res = p.ren.DrawInterpolated(sf, next, d.VsyncOffset, d.IdealFrameDuration, t)
			p.freePlanes(ntexs)
		}
	}
	if res == nil {
		res = p.ren.Draw(sf, t)
	}
	p.freePlanes(texs)

	p.lastStats = res.Stats
	if res.Broken {
		slogger().Warn("frame rendering failed, showing diagnostic fill", "pts", head.PTS)
	}
	p.ren.Flush()
	p.ren.Release(res)
}

// target resolves the output framebuffer description, defaulting to
// the stream size.
func (p *Presenter) target(f *Frame) gpu.Target {
	t := p.opts.Target
	if t.W <= 0 || t.H <= 0 {
		t = gpu.Target{W: f.Format.W, H: f.Format.H, Format: gpu.FormatRGBA8}
	}
	return t
}

// uploadFrame builds the renderer's view of a decoded frame: one
// texture per plane plus the colorspace parameters.
func (p *Presenter) uploadFrame(f *Frame) (*gpu.SourceFrame, []*gpu.Texture, error) {
	if f.Released() {
		return nil, nil, ErrFrameReleased
	}
	pool := p.ren.Pool()
	sf := &gpu.SourceFrame{
		ID:  f.ID,
		PTS: f.PTS,
		Params: gpu.CSPParams{
			Space:    f.Color.Space,
			Levels:   f.Color.Levels,
			Transfer: f.Color.Transfer,
			BitDepth: f.Format.BitDepth,
		},
		ChromaLoc: f.Color.ChromaLoc,
		SubX:      f.Format.SubX,
		SubY:      f.Format.SubY,
	}

	var texs []*gpu.Texture
	yuv := f.Color.Space.IsYUV()
	for i := 0; i < f.Format.Planes; i++ {
		w, h := f.Format.PlaneDims(i)
		tex, err := pool.Alloc(gpu.TextureConfig{
			Width: w, Height: h,
			Format: f.Format.planeFormat(i),
			Label:  fmt.Sprintf("frame-%d-plane-%d", f.ID, i),
		})
		if err != nil {
			p.freePlanes(texs)
			return nil, nil, err
		}
		if err := tex.Upload(f.Data[i], f.Stride[i]); err != nil {
			pool.Free(tex)
			p.freePlanes(texs)
			return nil, nil, err
		}
		texs = append(texs, tex)
		sf.Planes = append(sf.Planes, gpu.ImgTex{
			Role:       planeRole(i, f.Format, yuv),
			Tex:        tex,
			W:          w,
			H:          h,
			Components: f.Format.planeComponents(i),
			Multiplier: planeMultiplier(f.Format),
			Transform:  gpu.Identity(),
		})
	}
	return sf, texs, nil
}

func (p *Presenter) freePlanes(texs []*gpu.Texture) {
	for _, tex := range texs {
		p.ren.Pool().Free(tex)
	}
}

// planeRole maps a plane index to its semantic role.
func planeRole(i int, f PixelFormat, yuv bool) gpu.Role {
	if !yuv {
		return gpu.RoleRGB
	}
	switch {
	case i == 0:
		return gpu.RoleLuma
	case i == 3, i == 2 && f.PackedChroma:
		return gpu.RoleAlpha
	default:
		return gpu.RoleChroma
	}
}

// planeMultiplier renormalizes samples of content stored in wider
// textures than its bit depth, e.g. 10-bit content in 16-bit planes.
func planeMultiplier(f PixelFormat) float64 {
	if f.BitDepth >= 16 || f.BitDepth <= 8 {
		return 1
	}
	return float64(1<<16-1) / float64(int(1)<<uint(f.BitDepth)-1)
}

// silentClock is the audio clock of a stream without audio.
type silentClock struct{}

func (silentClock) PlayingPTS() float64 { return queue.NoPTS }
func (silentClock) WrittenPTS() float64 { return queue.NoPTS }
func (silentClock) Delay() float64      { return 0 }
func (silentClock) Playing() bool       { return false }
func (silentClock) Untimed() bool       { return false }
func (silentClock) PCM() bool           { return false }
