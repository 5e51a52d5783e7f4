package mask

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Target is the fixed silhouette the player must fill. It is loaded
// once per process and immutable afterwards, except for the cached
// resolution-matched copy, which is rebuilt whenever the active frame
// size changes (in practice once per session at most).
type Target struct {
	path string
	mat  gocv.Mat // binarized at source resolution

	mu      sync.Mutex
	scaled  gocv.Mat // cached resize, valid when scaledW/H > 0
	scaledW int
	scaledH int
}

// LoadTarget reads and binarizes the target silhouette image.
// Any pixel > 0 in the grayscale source maps to 255, so even faint
// sources survive; an all-black image fails with ErrEmptyTarget.
func LoadTarget(path string) (*Target, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrAssetLoad, path)
	}

	bin := gocv.NewMat()
	gocv.Threshold(img, &bin, 0, 255, gocv.ThresholdBinary)
	img.Close()

	if gocv.CountNonZero(bin) == 0 {
		bin.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmptyTarget, path)
	}

	return &Target{path: path, mat: bin}, nil
}

// Path returns the asset path the target was loaded from.
func (t *Target) Path() string {
	return t.path
}

// Pixels returns the nonzero pixel count at source resolution.
func (t *Target) Pixels() int {
	return gocv.CountNonZero(t.mat)
}

// Size returns the source resolution of the target mask.
func (t *Target) Size() (width, height int) {
	return t.mat.Cols(), t.mat.Rows()
}

// At returns the target mask resized to width×height, caching the
// result until the requested size changes. The returned Mat is owned
// by the Target: callers must not modify or Close it.
func (t *Target) At(width, height int) gocv.Mat {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.scaledW == width && t.scaledH == height {
		return t.scaled
	}

	if t.scaledW > 0 {
		t.scaled.Close()
	}

	t.scaled = resizeMask(t.mat, width, height)
	t.scaledW = width
	t.scaledH = height
	return t.scaled
}

// ResizeTo returns a fresh resized copy the caller owns and must Close.
func (t *Target) ResizeTo(width, height int) gocv.Mat {
	return resizeMask(t.mat, width, height)
}

// Close releases the underlying mats.
func (t *Target) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scaledW > 0 {
		t.scaled.Close()
		t.scaledW, t.scaledH = 0, 0
	}
	t.mat.Close()
}

// resizeMask resizes with nearest-neighbor so mask values stay
// exactly 0/255. Resizing to the current size yields an identical copy.
func resizeMask(src gocv.Mat, width, height int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationNearestNeighbor)
	return dst
}
