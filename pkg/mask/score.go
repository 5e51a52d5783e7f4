package mask

import (
	"gocv.io/x/gocv"
)

// Coverage is the result of scoring one frame's body mask against
// the target.
type Coverage struct {
	// FillPercent is intersection/target × 100, in [0,100].
	FillPercent float64

	BodyPixels         int
	IntersectionPixels int
	TargetPixels       int
}

// Score computes how much of the target the body mask covers.
// Both masks should share dimensions; if they differ the body mask
// is resized to the target's size first. The percentage is capped at
// 100 and defined as 0 for an empty target (which LoadTarget rules
// out, but the scorer must not divide by zero regardless).
//
// Deterministic, no hidden state: this is the scoring ground truth
// the whole game hangs on.
func Score(body, target gocv.Mat) Coverage {
	if body.Cols() != target.Cols() || body.Rows() != target.Rows() {
		resized := resizeMask(body, target.Cols(), target.Rows())
		defer resized.Close()
		body = resized
	}

	inter := gocv.NewMat()
	defer inter.Close()
	gocv.BitwiseAnd(body, target, &inter)

	cov := Coverage{
		BodyPixels:         gocv.CountNonZero(body),
		IntersectionPixels: gocv.CountNonZero(inter),
		TargetPixels:       gocv.CountNonZero(target),
	}

	if cov.TargetPixels > 0 {
		cov.FillPercent = float64(cov.IntersectionPixels) / float64(cov.TargetPixels) * 100.0
		if cov.FillPercent > 100.0 {
			cov.FillPercent = 100.0
		}
	}

	return cov
}
