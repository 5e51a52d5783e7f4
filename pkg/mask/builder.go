// Package mask builds and scores binary coverage masks: the player's
// body silhouette, derived from pose landmarks, against a fixed target
// silhouette loaded from disk. Masks are single-channel gocv Mats with
// values exactly 0 or 255.
package mask

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/feliperocha/go-silhouette/pkg/pose"
)

// BuildOptions holds silhouette construction parameters.
type BuildOptions struct {
	// MinVisibility is the landmark confidence cutoff.
	MinVisibility float64

	// MinPoints is how many usable landmarks are needed before any
	// mask is drawn. Below it the mask stays empty.
	MinPoints int

	// DiskRadius is the radius in pixels, at RefHeight, of the disk
	// stamped on each landmark. The hull alone loses hands and feet
	// to concavity; the disks buy that coverage back.
	DiskRadius int

	// RefHeight is the frame height DiskRadius is calibrated for.
	RefHeight int
}

// DefaultBuildOptions returns the production silhouette parameters.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		MinVisibility: pose.DefaultVisibility,
		MinPoints:     3,
		DiskRadius:    30,
		RefHeight:     720,
	}
}

// radiusFor scales the disk radius to the actual frame height,
// clamped so extreme resolutions stay sane.
func (o BuildOptions) radiusFor(height int) int {
	if o.RefHeight <= 0 {
		return o.DiskRadius
	}
	r := o.DiskRadius * height / o.RefHeight
	if r < 10 {
		r = 10
	}
	if r > 60 {
		r = 60
	}
	return r
}

var maskWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// BuildBodyMask converts one frame's landmarks into a binary body
// mask of the given dimensions. Landmarks below the visibility cutoff
// or outside the frame are dropped first; if fewer than MinPoints
// remain, the returned mask is all zero, a normal outcome meaning
// "no body detected this frame", not an error.
//
// The caller owns the returned Mat and must Close it.
func BuildBodyMask(landmarks []pose.Keypoint, width, height int, opts BuildOptions) gocv.Mat {
	m := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)

	points := pose.FilterVisible(landmarks, width, height, opts.MinVisibility)
	if len(points) < opts.MinPoints {
		return m
	}

	fillHull(&m, points)

	radius := opts.radiusFor(height)
	for _, pt := range points {
		gocv.Circle(&m, pt, radius, maskWhite, -1)
	}

	return m
}

// fillHull fills the convex hull of points solid into m.
func fillHull(m *gocv.Mat, points []image.Point) {
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()

	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(pv, &hull, false, true)

	// Hull comes back as an Nx1 two-channel int Mat
	poly := make([]image.Point, 0, hull.Rows())
	for i := 0; i < hull.Rows(); i++ {
		v := hull.GetVeciAt(i, 0)
		poly = append(poly, image.Pt(int(v[0]), int(v[1])))
	}
	if len(poly) < 3 {
		return
	}

	polys := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
	defer polys.Close()
	gocv.FillPoly(m, polys, maskWhite)
}
