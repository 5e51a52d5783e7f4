package perf

import (
	"testing"
	"time"
)

type fakeProbe struct {
	cores    int
	memBytes uint64
	cpuPct   float64
	memPct   float64
}

func (p fakeProbe) Cores() (int, error)          { return p.cores, nil }
func (p fakeProbe) MemoryBytes() (uint64, error) { return p.memBytes, nil }
func (p fakeProbe) Utilization() (float64, float64, error) {
	return p.cpuPct, p.memPct, nil
}

func gb(n int) uint64 { return uint64(n) << 30 }

func highEnd() fakeProbe  { return fakeProbe{cores: 8, memBytes: gb(16)} }
func midRange() fakeProbe { return fakeProbe{cores: 4, memBytes: gb(8)} }
func lowEnd() fakeProbe   { return fakeProbe{cores: 2, memBytes: gb(4)} }

func TestClassify_Tiers(t *testing.T) {
	cases := []struct {
		name  string
		probe fakeProbe
		tier  Tier
		fps   float64
		scale float64
	}{
		{"low by cores", fakeProbe{cores: 2, memBytes: gb(16)}, TierLow, 20, 0.7},
		{"low by memory", fakeProbe{cores: 8, memBytes: gb(4)}, TierLow, 20, 0.7},
		{"medium", midRange(), TierMedium, 25, 0.85},
		{"high", highEnd(), TierHigh, 30, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewController(tc.probe).Settings()
			if s.Tier != tc.tier {
				t.Errorf("tier: got %v, want %v", s.Tier, tc.tier)
			}
			if s.TargetFPS != tc.fps {
				t.Errorf("target fps: got %v, want %v", s.TargetFPS, tc.fps)
			}
			if s.ResolutionScale != tc.scale {
				t.Errorf("scale: got %v, want %v", s.ResolutionScale, tc.scale)
			}
			if s.FrameSkip != 1 || s.DetectionSkip != 1 {
				t.Errorf("skips: got %d/%d, want 1/1", s.FrameSkip, s.DetectionSkip)
			}
		})
	}
}

func TestController_DegradesUnderLoad(t *testing.T) {
	c := NewController(highEnd()) // target 30, floor 15

	for i := 0; i < 10; i++ {
		c.UpdateMetrics(5, 200*time.Millisecond, 150*time.Millisecond)
	}

	s := c.Settings()
	if s.FrameSkip <= 1 {
		t.Errorf("FrameSkip did not increase: %d", s.FrameSkip)
	}
	if s.DetectionSkip <= 1 {
		t.Errorf("DetectionSkip did not increase: %d", s.DetectionSkip)
	}
	if s.ResolutionScale >= 1.0 {
		t.Errorf("ResolutionScale did not decrease: %v", s.ResolutionScale)
	}
}

func TestController_Bounds(t *testing.T) {
	c := NewController(highEnd())

	// Far more updates than needed to hit every bound.
	for i := 0; i < 500; i++ {
		c.UpdateMetrics(1, time.Second, time.Second)
	}
	s := c.Settings()
	if s.FrameSkip < 1 || s.FrameSkip > 3 {
		t.Errorf("FrameSkip out of [1,3]: %d", s.FrameSkip)
	}
	if s.DetectionSkip < 1 || s.DetectionSkip > 3 {
		t.Errorf("DetectionSkip out of [1,3]: %d", s.DetectionSkip)
	}
	if s.ResolutionScale < 0.5 || s.ResolutionScale > 1.0 {
		t.Errorf("ResolutionScale out of [0.5,1.0]: %v", s.ResolutionScale)
	}

	for i := 0; i < 500; i++ {
		c.UpdateMetrics(120, time.Millisecond, time.Millisecond)
	}
	s = c.Settings()
	if s.FrameSkip != 1 || s.DetectionSkip != 1 {
		t.Errorf("skips did not relax to 1: %d/%d", s.FrameSkip, s.DetectionSkip)
	}
	if s.ResolutionScale != 1.0 {
		t.Errorf("ResolutionScale did not relax to 1.0: %v", s.ResolutionScale)
	}
}

func TestController_HysteresisBand(t *testing.T) {
	c := NewController(highEnd()) // target 30: band is [15, 36]

	before := c.Settings()
	for i := 0; i < 50; i++ {
		c.UpdateMetrics(30, 30*time.Millisecond, 20*time.Millisecond)
	}
	after := c.Settings()
	if after != before {
		t.Errorf("settings changed inside the stable band: %+v -> %+v", before, after)
	}
}

func TestController_SkipGating(t *testing.T) {
	c := NewController(lowEnd())

	// One degrade step takes both skip factors to 2.
	c.UpdateMetrics(5, time.Second, time.Second)
	s := c.Settings()
	if s.FrameSkip != 2 || s.DetectionSkip != 2 {
		t.Fatalf("skips after one degrade: got %d/%d, want 2/2", s.FrameSkip, s.DetectionSkip)
	}

	for idx := uint64(0); idx < 8; idx++ {
		wantSkip := idx%2 != 0
		if got := c.ShouldSkipFrame(idx); got != wantSkip {
			t.Errorf("ShouldSkipFrame(%d): got %v, want %v", idx, got, wantSkip)
		}
		if got := c.ShouldSkipDetection(idx); got != wantSkip {
			t.Errorf("ShouldSkipDetection(%d): got %v, want %v", idx, got, wantSkip)
		}
	}
}

func TestController_NeverSkipsAtFactorOne(t *testing.T) {
	c := NewController(highEnd())
	for idx := uint64(0); idx < 10; idx++ {
		if c.ShouldSkipFrame(idx) {
			t.Fatalf("frame %d skipped at factor 1", idx)
		}
	}
}

func TestController_EmergencyBackoff(t *testing.T) {
	c := NewController(highEnd())
	c.probe = fakeProbe{cpuPct: 95, memPct: 40}

	c.sampleOnce()

	s := c.Settings()
	if s.FrameSkip < 2 || s.DetectionSkip < 2 {
		t.Errorf("overload did not force skips >= 2: %d/%d", s.FrameSkip, s.DetectionSkip)
	}
}

func TestController_EmergencyLeavesHigherSkipsAlone(t *testing.T) {
	c := NewController(highEnd())
	for i := 0; i < 20; i++ {
		c.UpdateMetrics(1, time.Second, time.Second)
	}
	if c.Settings().FrameSkip != 3 {
		t.Fatal("setup: expected FrameSkip at cap")
	}

	c.probe = fakeProbe{cpuPct: 95, memPct: 95}
	c.sampleOnce()

	if got := c.Settings().FrameSkip; got != 3 {
		t.Errorf("overload lowered FrameSkip to %d", got)
	}
}
