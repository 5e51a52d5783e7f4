package game

import "errors"

var (
	// ErrCameraOpen indicates the capture device could not be opened.
	ErrCameraOpen = errors.New("failed to open camera")

	// ErrCameraRead indicates frame reads kept failing past the
	// retry bound.
	ErrCameraRead = errors.New("camera reads failing")
)
