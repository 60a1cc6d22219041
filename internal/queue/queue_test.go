package queue

import (
	"math"
	"testing"
)

type fakeFrame struct {
	pts float64
}

func newQueue() *Queue[*fakeFrame] {
	return New[*fakeFrame](func(f *fakeFrame) float64 { return f.pts })
}

func TestCapacityAndOrdering(t *testing.T) {
	q := newQueue()
	added := 0
	for i := 0; i < MaxQueuedFrames*2; i++ {
		if _, ok := q.Add(&fakeFrame{pts: float64(i) / 24}); ok {
			added++
		}
		if q.Len() > MaxQueuedFrames {
			t.Fatalf("queue exceeded capacity: %d", q.Len())
		}
	}
	if added != MaxQueuedFrames {
		t.Errorf("expected %d accepted frames, got %d", MaxQueuedFrames, added)
	}
	frames := q.Frames(q.Len())
	for i := 0; i+1 < len(frames); i++ {
		if frames[i].pts >= frames[i+1].pts {
			t.Errorf("pts not strictly increasing at %d: %f >= %f",
				i, frames[i].pts, frames[i+1].pts)
		}
	}
}

func TestReqFrames(t *testing.T) {
	q := newQueue()
	tests := []struct {
		name                          string
		eof, firstFrame, displaySync  bool
		sinkReq, want                 int
	}{
		{"eof drains", true, false, false, 4, 1},
		{"first frame audio sync", false, true, false, 4, 1},
		{"first frame display sync", false, true, true, 4, 2},
		{"sink request honored", false, false, false, 4, 4},
		{"sink request clamped low", false, false, true, 0, 2},
		{"sink request clamped high", false, false, true, 99, MaxQueuedFrames - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := q.ReqFrames(tt.eof, tt.firstFrame, tt.displaySync, tt.sinkReq)
			if got != tt.want {
				t.Errorf("ReqFrames = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFrameTimeDiscontinuity(t *testing.T) {
	tests := []struct {
		name     string
		prev     float64
		pts      float64
		wantTime float64
		wantDisc bool
	}{
		{"normal step", 10.0, 10.0 + 1.0/24, 1.0 / 24, false},
		{"backwards pts", 10.0, 9.5, 0, true},
		{"equal pts", 10.0, 10.0, 0, true},
		{"huge gap", 10.0, 40.0, 0, true},
		{"no previous pts", NoPTS, 3.0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue()
			q.Add(&fakeFrame{pts: tt.pts})
			frameTime, disc := q.FrameTime(tt.prev)
			if disc != tt.wantDisc {
				t.Errorf("discontinuity = %v, want %v", disc, tt.wantDisc)
			}
			if math.Abs(frameTime-tt.wantTime) > 1e-9 {
				t.Errorf("frameTime = %f, want %f", frameTime, tt.wantTime)
			}
		})
	}
}

func TestShift(t *testing.T) {
	q := newQueue()
	f1 := &fakeFrame{pts: 1}
	f2 := &fakeFrame{pts: 2}
	q.Add(f1)
	q.Add(f2)

	got, ok := q.Shift()
	if !ok || got != f1 {
		t.Fatalf("Shift returned %v, %v; want f1", got, ok)
	}
	head, ok := q.Head()
	if !ok || head != f2 {
		t.Fatalf("Head returned %v, %v; want f2", head, ok)
	}
	q.Shift()
	if _, ok := q.Shift(); ok {
		t.Error("Shift on empty queue should report !ok")
	}
}

func TestReset(t *testing.T) {
	q := newQueue()
	q.Add(&fakeFrame{pts: 1})
	q.Add(&fakeFrame{pts: 2})
	q.History().Push(FrameInfo{PTS: 1, Duration: 0.04})

	released := 0
	q.Reset(func(*fakeFrame) { released++ })

	if released != 2 {
		t.Errorf("expected 2 released frames, got %d", released)
	}
	if q.Len() != 0 || q.History().Len() != 0 {
		t.Errorf("expected empty queue and history, got %d/%d",
			q.Len(), q.History().Len())
	}
}

func TestCalcDuration(t *testing.T) {
	h := NewHistory()

	// A run of frames at exactly 24 fps with 1ms-rounded timestamps.
	rounded := func(i int) float64 {
		return math.Round(float64(i)/24*1000) / 1000
	}
	for i := 0; i < 10; i++ {
		h.Push(FrameInfo{PTS: rounded(i), NumVsyncs: -1})
		h.CalcDuration(rounded(i+1), 24)
	}

	front := h.Front()
	if math.Abs(front.ApproxDuration-1.0/24) > 1e-9 {
		t.Errorf("approx duration = %f, want %f", front.ApproxDuration, 1.0/24)
	}
}

func TestCalcDurationLastFrame(t *testing.T) {
	h := NewHistory()
	h.Push(FrameInfo{PTS: 5.0, NumVsyncs: -1})
	// No next frame; container rate is significant, so it is used.
	h.CalcDuration(NoPTS, 4)
	if got := h.Front().Duration; math.Abs(got-0.25) > 1e-9 {
		t.Errorf("duration = %f, want 0.25", got)
	}

	// A 1000 fps container duration is insignificant; duration unknown.
	h2 := NewHistory()
	h2.Push(FrameInfo{PTS: 5.0, NumVsyncs: -1})
	h2.CalcDuration(NoPTS, 1000)
	if got := h2.Front().Duration; got != -1 {
		t.Errorf("duration = %f, want -1", got)
	}
}

func TestAverageDuration(t *testing.T) {
	h := NewHistory()
	if got := h.AverageDuration(); got != 0 {
		t.Errorf("empty history average = %f, want 0", got)
	}
	h.Push(FrameInfo{ApproxDuration: 0.040})
	h.Push(FrameInfo{ApproxDuration: 0.042})
	h.Push(FrameInfo{ApproxDuration: -1}) // unknown, skipped
	want := (0.040 + 0.042) / 2
	if got := h.AverageDuration(); math.Abs(got-want) > 1e-9 {
		t.Errorf("average = %f, want %f", got, want)
	}
}
