package session

import (
	"errors"
	"testing"
	"time"

	"github.com/feliperocha/go-silhouette/pkg/mask"
	"gocv.io/x/gocv"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeSnapshots struct {
	calls []float64
	err   error
}

func (f *fakeSnapshots) Save(_ gocv.Mat, fillPercent float64) (string, error) {
	f.calls = append(f.calls, fillPercent)
	if f.err != nil {
		return "", f.err
	}
	return "snapshots/fake.jpg", nil
}

type fakeStats struct {
	rounds []RoundStats
}

func (f *fakeStats) RecordRound(r RoundStats) { f.rounds = append(f.rounds, r) }

func fillAt(pct float64) func() mask.Coverage {
	return func() mask.Coverage { return mask.Coverage{FillPercent: pct} }
}

func mustNotScore(t *testing.T) func() mask.Coverage {
	return func() mask.Coverage {
		t.Fatal("scorer invoked for a frame below the detection minimum")
		return mask.Coverage{}
	}
}

func testConfig() Config {
	return Config{
		Duration:      60 * time.Second,
		WinThreshold:  30.0,
		MinBodyPixels: 1000,
	}
}

func TestSession_WinAtThreshold(t *testing.T) {
	clock := newFakeClock()
	snaps := &fakeSnapshots{}
	stats := &fakeStats{}
	s := New(testConfig(), snaps, stats, WithClock(clock.now))
	frame := gocv.NewMat()
	defer frame.Close()

	s.Start()
	clock.advance(10 * time.Second)
	st := s.Update(frame, 5000, fillAt(35.0))

	if st.State != Won {
		t.Fatalf("state: got %v, want Won", st.State)
	}
	if st.BestPercent < 35.0 {
		t.Errorf("BestPercent: got %v, want >= 35.0", st.BestPercent)
	}
	if len(snaps.calls) != 1 || snaps.calls[0] != 35.0 {
		t.Errorf("snapshot calls: got %v, want one call at 35.0", snaps.calls)
	}
	if len(stats.rounds) != 1 {
		t.Fatalf("stats rounds: got %d, want 1", len(stats.rounds))
	}
	r := stats.rounds[0]
	if !r.Won || r.TimeToWin != 10*time.Second || !r.SnapshotSaved {
		t.Errorf("round stats: got %+v", r)
	}
}

func TestSession_TimeoutNeverWon(t *testing.T) {
	clock := newFakeClock()
	stats := &fakeStats{}
	cfg := testConfig()
	cfg.Duration = 5 * time.Second
	cfg.WinThreshold = 90.0
	s := New(cfg, nil, stats, WithClock(clock.now))
	frame := gocv.NewMat()
	defer frame.Close()

	s.Start()
	for i := 0; i < 10; i++ {
		clock.advance(time.Second)
		st := s.Update(frame, 5000, fillAt(10.0))
		if st.State == Won {
			t.Fatal("session won at 10% against a 90% threshold")
		}
	}

	if st := s.Status(); st.State != TimedOut {
		t.Fatalf("state: got %v, want TimedOut", st.State)
	}
	if len(stats.rounds) != 1 {
		t.Fatalf("stats rounds: got %d, want exactly 1", len(stats.rounds))
	}
	if stats.rounds[0].Won {
		t.Error("timed-out round recorded as won")
	}
	if stats.rounds[0].SnapshotSaved {
		t.Error("snapshot recorded for a timed-out round")
	}
}

func TestSession_TerminalFreezesFill(t *testing.T) {
	clock := newFakeClock()
	s := New(testConfig(), nil, nil, WithClock(clock.now))
	frame := gocv.NewMat()
	defer frame.Close()

	s.Start()
	s.Update(frame, 5000, fillAt(40.0))
	if s.State() != Won {
		t.Fatal("expected Won")
	}

	clock.advance(time.Minute)
	st := s.Update(frame, 5000, fillAt(95.0))
	if st.FillPercent != 40.0 {
		t.Errorf("terminal fill mutated: got %v, want 40.0", st.FillPercent)
	}
	if st.State != Won {
		t.Errorf("terminal state mutated: got %v", st.State)
	}
}

func TestSession_RestartZeroesRound(t *testing.T) {
	clock := newFakeClock()
	s := New(testConfig(), nil, nil, WithClock(clock.now))
	frame := gocv.NewMat()
	defer frame.Close()

	s.Start()
	s.Update(frame, 5000, fillAt(40.0))

	clock.advance(30 * time.Second)
	s.Start()
	st := s.Status()
	if st.State != Running {
		t.Fatalf("state after restart: got %v, want Running", st.State)
	}
	if st.FillPercent != 0 || st.BestPercent != 0 {
		t.Errorf("score after restart: fill=%v best=%v, want both 0", st.FillPercent, st.BestPercent)
	}
	if st.Elapsed != 0 {
		t.Errorf("elapsed after restart: got %v, want 0", st.Elapsed)
	}
}

func TestSession_HoldVersusReset(t *testing.T) {
	clock := newFakeClock()
	s := New(testConfig(), nil, nil, WithClock(clock.now))
	frame := gocv.NewMat()
	defer frame.Close()

	s.Start()
	s.Update(frame, 5000, fillAt(20.0))

	// Some detection, but under the minimum: hold the last value.
	st := s.Update(frame, 500, mustNotScore(t))
	if st.FillPercent != 20.0 {
		t.Errorf("partial detection: got %v, want held 20.0", st.FillPercent)
	}

	// No detection at all: reset to zero.
	st = s.Update(frame, 0, mustNotScore(t))
	if st.FillPercent != 0 {
		t.Errorf("zero detection: got %v, want 0", st.FillPercent)
	}

	// Best survives the reset.
	if st.BestPercent != 20.0 {
		t.Errorf("BestPercent: got %v, want 20.0", st.BestPercent)
	}
}

func TestSession_BestTracksPeak(t *testing.T) {
	clock := newFakeClock()
	s := New(testConfig(), nil, nil, WithClock(clock.now))
	frame := gocv.NewMat()
	defer frame.Close()

	s.Start()
	s.Update(frame, 5000, fillAt(25.0))
	st := s.Update(frame, 5000, fillAt(12.0))

	if st.FillPercent != 12.0 {
		t.Errorf("FillPercent: got %v, want 12.0", st.FillPercent)
	}
	if st.BestPercent != 25.0 {
		t.Errorf("BestPercent: got %v, want 25.0", st.BestPercent)
	}
}

func TestSession_SnapshotFailureStillRecordsWin(t *testing.T) {
	clock := newFakeClock()
	snaps := &fakeSnapshots{err: errors.New("disk full")}
	stats := &fakeStats{}
	s := New(testConfig(), snaps, stats, WithClock(clock.now))
	frame := gocv.NewMat()
	defer frame.Close()

	s.Start()
	st := s.Update(frame, 5000, fillAt(50.0))

	if st.State != Won {
		t.Fatalf("state: got %v, want Won", st.State)
	}
	if len(stats.rounds) != 1 || !stats.rounds[0].Won {
		t.Fatalf("stats rounds: got %+v", stats.rounds)
	}
	if stats.rounds[0].SnapshotSaved {
		t.Error("failed snapshot reported as saved")
	}
}

func TestSession_UpdateBeforeStartIsNoop(t *testing.T) {
	s := New(testConfig(), nil, nil)
	frame := gocv.NewMat()
	defer frame.Close()

	st := s.Update(frame, 5000, fillAt(99.0))
	if st.State != NotStarted || st.FillPercent != 0 {
		t.Errorf("got state=%v fill=%v, want NotStarted and 0", st.State, st.FillPercent)
	}
}
