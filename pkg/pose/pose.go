// Package pose defines the body-landmark detection boundary.
// A Detector turns a camera frame into a set of anatomical keypoints;
// everything downstream (mask building, scoring) consumes keypoints only
// and never sees the detector backend.
package pose

import (
	"image"

	"gocv.io/x/gocv"
)

// Landmark identifies an anatomical keypoint index.
type Landmark int

// Single-pose landmark set (COCO ordering, as produced by MoveNet).
const (
	Nose Landmark = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	// NumLandmarks is the size of a full landmark set.
	NumLandmarks = 17
)

var landmarkNames = [NumLandmarks]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

// String returns the landmark's anatomical name.
func (l Landmark) String() string {
	if l < 0 || int(l) >= NumLandmarks {
		return "unknown"
	}
	return landmarkNames[l]
}

// Keypoint is one detected landmark for the current frame.
// Coordinates are normalized to [0,1] relative to the frame.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// Result is one frame's detection outcome. An empty Landmarks slice
// means no person was found; that is a normal result, not an error.
type Result struct {
	Landmarks []Keypoint
}

// Detected reports whether any landmarks were found.
func (r Result) Detected() bool {
	return len(r.Landmarks) > 0
}

// Detector is the interface for pose detection backends.
type Detector interface {
	// Detect finds body landmarks in the frame. A frame with no
	// person yields an empty Result and a nil error.
	Detect(frame gocv.Mat) (Result, error)

	// Close releases backend resources.
	Close() error
}

// DefaultVisibility is the confidence threshold below which a keypoint
// is treated as not seen.
const DefaultVisibility = 0.5

// FilterVisible converts landmarks to pixel coordinates, keeping only
// those with visibility above minVis and positioned inside the
// width×height frame. The returned points feed the mask builder.
func FilterVisible(landmarks []Keypoint, width, height int, minVis float64) []image.Point {
	var pts []image.Point
	for _, kp := range landmarks {
		if kp.Visibility <= minVis {
			continue
		}
		x := int(kp.X * float64(width))
		y := int(kp.Y * float64(height))
		if x < 0 || x >= width || y < 0 || y >= height {
			continue
		}
		pts = append(pts, image.Pt(x, y))
	}
	return pts
}
