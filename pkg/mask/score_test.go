package mask

import (
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

// fillRect paints a half-open rectangle white, so pixel counts are
// exact (image.Rect(25,25,75,75) covers exactly 50×50 pixels).
func fillRect(m *gocv.Mat, r image.Rectangle) {
	region := m.Region(r)
	defer region.Close()
	region.SetTo(gocv.NewScalar(255, 0, 0, 0))
}

// newMask returns a zeroed single-channel mask.
func newMask(width, height int) gocv.Mat {
	return gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)
}

// centeredSquareTarget is the 100×100 target with a solid 50×50
// square in the middle used across the scoring scenarios.
func centeredSquareTarget() gocv.Mat {
	m := newMask(100, 100)
	fillRect(&m, image.Rect(25, 25, 75, 75))
	return m
}

func TestScore_IdenticalSquares(t *testing.T) {
	target := centeredSquareTarget()
	defer target.Close()
	body := centeredSquareTarget()
	defer body.Close()

	cov := Score(body, target)
	if cov.FillPercent != 100.0 {
		t.Errorf("FillPercent: got %v, want 100.0", cov.FillPercent)
	}
	if cov.TargetPixels != 2500 {
		t.Errorf("TargetPixels: got %d, want 2500", cov.TargetPixels)
	}
	if cov.IntersectionPixels != 2500 {
		t.Errorf("IntersectionPixels: got %d, want 2500", cov.IntersectionPixels)
	}
}

func TestScore_SelfOverlapSaturates(t *testing.T) {
	target := centeredSquareTarget()
	defer target.Close()

	if got := Score(target, target).FillPercent; got != 100.0 {
		t.Errorf("score(T,T): got %v, want exactly 100.0", got)
	}
}

func TestScore_QuarterInside(t *testing.T) {
	target := centeredSquareTarget()
	defer target.Close()

	body := newMask(100, 100)
	defer body.Close()
	fillRect(&body, image.Rect(30, 30, 55, 55)) // 25×25 fully inside

	cov := Score(body, target)
	if math.Abs(cov.FillPercent-25.0) > 1e-9 {
		t.Errorf("FillPercent: got %v, want 25.0 (625/2500)", cov.FillPercent)
	}
	if cov.BodyPixels != 625 {
		t.Errorf("BodyPixels: got %d, want 625", cov.BodyPixels)
	}
}

func TestScore_Disjoint(t *testing.T) {
	target := centeredSquareTarget()
	defer target.Close()

	body := newMask(100, 100)
	defer body.Close()
	fillRect(&body, image.Rect(0, 0, 20, 20)) // outside the target square

	cov := Score(body, target)
	if cov.FillPercent != 0.0 {
		t.Errorf("FillPercent: got %v, want 0.0", cov.FillPercent)
	}
	if cov.IntersectionPixels != 0 {
		t.Errorf("IntersectionPixels: got %d, want 0", cov.IntersectionPixels)
	}
}

func TestScore_EmptyBody(t *testing.T) {
	target := centeredSquareTarget()
	defer target.Close()

	body := newMask(100, 100)
	defer body.Close()

	if got := Score(body, target).FillPercent; got != 0.0 {
		t.Errorf("FillPercent for empty body: got %v, want 0.0", got)
	}
}

func TestScore_EmptyTarget(t *testing.T) {
	target := newMask(100, 100)
	defer target.Close()
	body := centeredSquareTarget()
	defer body.Close()

	// LoadTarget forbids this, but the scorer must not divide by zero
	if got := Score(body, target).FillPercent; got != 0.0 {
		t.Errorf("FillPercent for empty target: got %v, want 0.0", got)
	}
}

func TestScore_Monotonicity(t *testing.T) {
	target := centeredSquareTarget()
	defer target.Close()

	// b1 ⊆ b2 as pixel sets
	b1 := newMask(100, 100)
	defer b1.Close()
	fillRect(&b1, image.Rect(30, 30, 50, 50))

	b2 := newMask(100, 100)
	defer b2.Close()
	fillRect(&b2, image.Rect(25, 25, 70, 70))

	p1 := Score(b1, target).FillPercent
	p2 := Score(b2, target).FillPercent
	if p1 > p2 {
		t.Errorf("Monotonicity violated: subset scored %v > superset %v", p1, p2)
	}
}

func TestScore_ResizesMismatchedBody(t *testing.T) {
	target := centeredSquareTarget()
	defer target.Close()

	// Body at half resolution, same proportional square
	body := newMask(50, 50)
	defer body.Close()
	fillRect(&body, image.Rect(12, 12, 38, 38))

	cov := Score(body, target)
	if cov.TargetPixels != 2500 {
		t.Errorf("TargetPixels: got %d, want 2500", cov.TargetPixels)
	}
	if cov.FillPercent <= 0 || cov.FillPercent > 100 {
		t.Errorf("FillPercent out of range after resize: %v", cov.FillPercent)
	}
}
