// Package perf keeps the frame loop inside an acceptable frame-rate
// band on unknown hardware. A Controller classifies the machine once
// at startup, then adjusts frame/detection sampling and processing
// resolution in a closed loop driven by observed FPS, with an
// independent CPU/RAM sampler as an emergency brake.
package perf

import (
	"context"
	"image"
	"math"
	"sync"
	"time"

	"github.com/feliperocha/go-silhouette/internal/log"
	"gocv.io/x/gocv"
)

// Tier is the coarse hardware class assigned at startup.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	}
	return "unknown"
}

// Adaptation bounds.
const (
	maxSkipFactor    = 3
	minScale         = 0.5
	maxScale         = 1.0
	scaleStep        = 0.1
	relaxMargin      = 1.2
	recentWindow     = 10
	historyCap       = 100
	sysHistoryCap    = 60
	overloadPercent  = 90.0
	emergencySkipMin = 2
)

// Settings is the working set read by the frame loop each iteration.
// Values are returned by copy; only the Controller mutates them.
type Settings struct {
	FrameSkip       int     `json:"frame_skip"`
	DetectionSkip   int     `json:"detection_skip"`
	ResolutionScale float64 `json:"resolution_scale"`
	Tier            Tier    `json:"-"`
	TargetFPS       float64 `json:"target_fps"`
	MinFPS          float64 `json:"min_fps"`
}

type sysSample struct {
	cpu float64
	mem float64
	at  time.Time
}

// Controller owns AdaptiveSettings for the life of the process. Safe
// for concurrent use; the frame loop and the sampler goroutine both
// touch it.
type Controller struct {
	mu       sync.RWMutex
	settings Settings

	fpsHistory    []float64
	frameTimes    []time.Duration
	detectTimes   []time.Duration
	systemSamples []sysSample

	probe SystemProbe
}

// NewController classifies the hardware through probe and seeds the
// settings for that tier. Probe failures fall back to the medium tier.
func NewController(probe SystemProbe) *Controller {
	c := &Controller{probe: probe}
	c.settings = seedFor(classify(probe))
	log.Info("performance tier detected",
		"tier", c.settings.Tier.String(),
		"target_fps", c.settings.TargetFPS,
		"resolution_scale", c.settings.ResolutionScale)
	return c
}

func classify(probe SystemProbe) Tier {
	cores, err := probe.Cores()
	if err != nil {
		log.Warn("cpu probe failed, assuming medium tier", "error", err)
		return TierMedium
	}
	memBytes, err := probe.MemoryBytes()
	if err != nil {
		log.Warn("memory probe failed, assuming medium tier", "error", err)
		return TierMedium
	}
	memGB := float64(memBytes) / (1 << 30)
	switch {
	case cores <= 2 || memGB <= 4:
		return TierLow
	case cores <= 4 || memGB <= 8:
		return TierMedium
	default:
		return TierHigh
	}
}

func seedFor(tier Tier) Settings {
	s := Settings{FrameSkip: 1, DetectionSkip: 1, Tier: tier}
	switch tier {
	case TierLow:
		s.TargetFPS = 20
		s.ResolutionScale = 0.7
	case TierMedium:
		s.TargetFPS = 25
		s.ResolutionScale = 0.85
	default:
		s.TargetFPS = 30
		s.ResolutionScale = 1.0
	}
	s.MinFPS = s.TargetFPS / 2
	return s
}

// Settings returns a copy of the current working set.
func (c *Controller) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// ShouldSkipFrame reports whether all heavy work should be skipped
// for this frame index.
func (c *Controller) ShouldSkipFrame(frameIndex uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return frameIndex%uint64(c.settings.FrameSkip) != 0
}

// ShouldSkipDetection reports whether the pose-detection call should
// be skipped for this frame index, reusing the prior result.
func (c *Controller) ShouldSkipDetection(frameIndex uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return frameIndex%uint64(c.settings.DetectionSkip) != 0
}

// UpdateMetrics records one processed frame and adapts the settings.
// The mean FPS over the last few samples is compared against the
// floor and against the target with a margin; inside that band
// nothing changes, which keeps the loop from oscillating.
func (c *Controller) UpdateMetrics(fps float64, frameTime, detectionTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fpsHistory = appendBounded(c.fpsHistory, fps, historyCap)
	c.frameTimes = appendBounded(c.frameTimes, frameTime, historyCap)
	c.detectTimes = appendBounded(c.detectTimes, detectionTime, historyCap)

	recent := meanTail(c.fpsHistory, recentWindow)
	switch {
	case recent < c.settings.MinFPS:
		c.degradeLocked()
	case recent > c.settings.TargetFPS*relaxMargin:
		c.relaxLocked()
	}
}

func (c *Controller) degradeLocked() {
	changed := false
	if c.settings.FrameSkip < maxSkipFactor {
		c.settings.FrameSkip++
		changed = true
	}
	if c.settings.DetectionSkip < maxSkipFactor {
		c.settings.DetectionSkip++
		changed = true
	}
	if c.settings.ResolutionScale > minScale {
		c.settings.ResolutionScale = roundScale(c.settings.ResolutionScale - scaleStep)
		changed = true
	}
	if changed {
		log.Debug("performance degraded",
			"frame_skip", c.settings.FrameSkip,
			"detection_skip", c.settings.DetectionSkip,
			"resolution_scale", c.settings.ResolutionScale)
	}
}

func (c *Controller) relaxLocked() {
	changed := false
	if c.settings.FrameSkip > 1 {
		c.settings.FrameSkip--
		changed = true
	}
	if c.settings.DetectionSkip > 1 {
		c.settings.DetectionSkip--
		changed = true
	}
	if c.settings.ResolutionScale < maxScale {
		c.settings.ResolutionScale = roundScale(c.settings.ResolutionScale + scaleStep)
		changed = true
	}
	if changed {
		log.Debug("performance relaxed",
			"frame_skip", c.settings.FrameSkip,
			"detection_skip", c.settings.DetectionSkip,
			"resolution_scale", c.settings.ResolutionScale)
	}
}

// RunSampler polls system utilization every interval until ctx is
// canceled. Overload forces both skip factors up regardless of the
// FPS loop, so a saturated machine backs off even when the frame
// timer looks healthy.
func (c *Controller) RunSampler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sampleOnce()
		}
	}
}

func (c *Controller) sampleOnce() {
	cpuPct, memPct, err := c.probe.Utilization()
	if err != nil {
		log.Debug("utilization probe failed", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.systemSamples = appendBounded(c.systemSamples,
		sysSample{cpu: cpuPct, mem: memPct, at: time.Now()}, sysHistoryCap)

	if cpuPct > overloadPercent || memPct > overloadPercent {
		if c.settings.FrameSkip < emergencySkipMin {
			c.settings.FrameSkip = emergencySkipMin
		}
		if c.settings.DetectionSkip < emergencySkipMin {
			c.settings.DetectionSkip = emergencySkipMin
		}
		log.Warn("system overloaded, forcing frame skipping",
			"cpu_percent", cpuPct,
			"mem_percent", memPct)
	}
}

// OptimizeFrame writes a processing copy of src into dst at the
// current resolution scale. The low tier adds a mild blur over the
// downscaled frame as detection input smoothing.
func (c *Controller) OptimizeFrame(src gocv.Mat, dst *gocv.Mat) {
	c.mu.RLock()
	scale := c.settings.ResolutionScale
	tier := c.settings.Tier
	c.mu.RUnlock()

	if scale >= maxScale {
		src.CopyTo(dst)
	} else {
		w := int(float64(src.Cols()) * scale)
		h := int(float64(src.Rows()) * scale)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		gocv.Resize(src, dst, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
	}

	if tier == TierLow {
		gocv.GaussianBlur(*dst, dst, image.Pt(3, 3), 0, 0, gocv.BorderDefault)
	}
}

func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}

func meanTail(s []float64, n int) float64 {
	if len(s) == 0 {
		return 0
	}
	if len(s) > n {
		s = s[len(s)-n:]
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

func roundScale(v float64) float64 {
	v = math.Round(v*10) / 10
	if v < minScale {
		return minScale
	}
	if v > maxScale {
		return maxScale
	}
	return v
}
