package avsync

import (
	"math"
	"math/rand"
	"testing"

	"github.com/gogpu/present/internal/queue"
)

func displaySyncEngine() *Engine {
	e := NewEngine(DefaultConfig())
	e.Cfg.Mode = ModeDisplayResample
	e.State.VideoPTS = 0
	return e
}

// runFrame pushes a history entry for the next frame and schedules it.
func runFrame(e *Engine, hist *queue.History, dur, vsync, audioPTS float64) Decision {
	hist.Push(queue.FrameInfo{PTS: e.State.VideoPTS, NumVsyncs: -1})
	front := hist.Front()
	front.Duration = dur
	front.ApproxDuration = dur
	hist.SetFront(front)

	d := e.Schedule(ScheduleInput{
		VsyncInterval:  vsync,
		ApproxDuration: dur,
		History:        hist,
		AudioPTS:       audioPTS,
		AudioPlaying:   audioPTS != queue.NoPTS,
		VideoPlaying:   true,
	})
	e.Commit(d, hist)
	e.State.VideoPTS += dur
	return d
}

func TestCarryStaysBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vsyncs := []float64{1.0 / 60, 1.0 / 75, 1.0 / 144, 1.0 / 24}
	for _, vsync := range vsyncs {
		e := displaySyncEngine()
		hist := queue.NewHistory()
		for i := 0; i < 500; i++ {
			dur := 0.001 + rng.Float64()*0.45
			d := runFrame(e, hist, dur, vsync, queue.NoPTS)
			if !d.DisplaySynced {
				t.Fatalf("vsync %f frame %d: unexpectedly not display-synced", vsync, i)
			}
			if d.NumVsyncs < 0 {
				t.Fatalf("vsync %f frame %d: negative NumVsyncs %d", vsync, i, d.NumVsyncs)
			}
			if math.Abs(e.State.DisplaySyncError) >= vsync {
				t.Fatalf("vsync %f frame %d: carry %f diverged beyond vsync %f",
					vsync, i, e.State.DisplaySyncError, vsync)
			}
		}
	}
}

func TestDropRepeatClamp(t *testing.T) {
	// Feed enormous av differences (but below the broken threshold) and
	// check the correction stays within [-numVsyncs, numVsyncs*10].
	for _, avDiff := range []float64{-0.49, -0.1, 0.1, 0.49} {
		e := displaySyncEngine()
		e.State.LastAVDiff = avDiff
		hist := queue.NewHistory()
		d := runFrame(e, hist, 1.0/24, 1.0/60, queue.NoPTS)
		base := d.NumVsyncs - d.DropRepeat
		if d.DropRepeat < -base || d.DropRepeat > base*10 {
			t.Errorf("avDiff %f: drop_repeat %d outside [%d, %d]",
				avDiff, d.DropRepeat, -base, base*10)
		}
		if d.NumVsyncs < 0 {
			t.Errorf("avDiff %f: negative NumVsyncs %d", avDiff, d.NumVsyncs)
		}
	}
}

func TestScheduleIdempotent(t *testing.T) {
	e := displaySyncEngine()
	hist := queue.NewHistory()
	hist.Push(queue.FrameInfo{PTS: 0, Duration: 1.0 / 24, ApproxDuration: 1.0 / 24, NumVsyncs: -1})

	in := ScheduleInput{
		VsyncInterval:  1.0 / 60,
		ApproxDuration: 1.0 / 24,
		History:        hist,
		AudioPTS:       0.01,
		AudioPlaying:   true,
		VideoPlaying:   true,
		SinkDelay:      0.02,
	}
	d1 := e.Schedule(in)
	d2 := e.Schedule(in)
	if d1 != d2 {
		t.Errorf("Schedule is not idempotent: %+v vs %+v", d1, d2)
	}
}

func Test24pOn60HzCadence(t *testing.T) {
	e := displaySyncEngine()
	hist := queue.NewHistory()
	vsync := 1.0 / 60
	dur := 1.0 / 24

	var counts []int
	for i := 0; i < 20; i++ {
		d := runFrame(e, hist, dur, vsync, queue.NoPTS)
		if !d.DisplaySynced {
			t.Fatalf("frame %d not display-synced", i)
		}
		counts = append(counts, d.NumVsyncs)
	}

	// 24 fps on 60 Hz must settle on 5 vsyncs per 2 frames, alternating
	// between 2 and 3, with the carry staying bounded.
	for i := 2; i+1 < len(counts); i += 2 {
		if counts[i]+counts[i+1] != 5 {
			t.Errorf("frames %d,%d: %d+%d vsyncs, want 5 per pair",
				i, i+1, counts[i], counts[i+1])
		}
	}
	if math.Abs(e.State.DisplaySyncError) >= vsync {
		t.Errorf("carry %f not bounded by vsync", e.State.DisplaySyncError)
	}
}

func TestBrokenLatch(t *testing.T) {
	e := displaySyncEngine()
	hist := queue.NewHistory()

	d := runFrame(e, hist, 1.0/24, 1.0/60, queue.NoPTS)
	if !d.DisplaySynced || !e.State.Active {
		t.Fatal("expected display sync to engage")
	}

	// A/V difference jumps past the threshold mid-playback.
	e.State.LastAVDiff = 0.6
	d = runFrame(e, hist, 1.0/24, 1.0/60, queue.NoPTS)
	if d.DisplaySynced {
		t.Error("expected frame to fall back to untimed scheduling")
	}
	if !e.State.Broken {
		t.Fatal("expected broken state to latch")
	}

	// Broken stays latched even with good diffs.
	e.State.LastAVDiff = 0
	for i := 0; i < 5; i++ {
		d = runFrame(e, hist, 1.0/24, 1.0/60, queue.NoPTS)
		if d.DisplaySynced {
			t.Fatal("broken scheduler must not re-engage")
		}
	}

	// Only a reset recovers.
	e.Reset()
	if e.State.Broken {
		t.Error("Reset must clear the broken latch")
	}
}

func TestDisplaySyncPreconditions(t *testing.T) {
	hist := queue.NewHistory()
	hist.Push(queue.FrameInfo{ApproxDuration: 1.0 / 24, NumVsyncs: -1})

	tests := []struct {
		name string
		prep func(*Engine) ScheduleInput
	}{
		{"audio mode", func(e *Engine) ScheduleInput {
			e.Cfg.Mode = ModeAudio
			return ScheduleInput{VsyncInterval: 1.0 / 60, ApproxDuration: 1.0 / 24, History: hist}
		}},
		{"no vsync interval", func(e *Engine) ScheduleInput {
			return ScheduleInput{VsyncInterval: 0, ApproxDuration: 1.0 / 24, History: hist}
		}},
		{"spdif passthrough", func(e *Engine) ScheduleInput {
			return ScheduleInput{VsyncInterval: 1.0 / 60, ApproxDuration: 1.0 / 24,
				History: hist, SpdifPassthrough: true}
		}},
		{"excessive duration", func(e *Engine) ScheduleInput {
			return ScheduleInput{VsyncInterval: 1.0 / 60, ApproxDuration: 0.75, History: hist}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := displaySyncEngine()
			in := tt.prep(e)
			d := e.Schedule(in)
			if d.DisplaySynced {
				t.Error("expected display sync to stay off")
			}
			e.Commit(d, hist)
			if e.State.Active {
				t.Error("expected state to remain inactive")
			}
			if e.State.SpeedFactorV != 1 || e.State.SpeedFactorA != 1 {
				t.Errorf("speed factors not reset: v=%f a=%f",
					e.State.SpeedFactorV, e.State.SpeedFactorA)
			}
		})
	}
}
