package game

import (
	"fmt"

	"github.com/feliperocha/go-silhouette/internal/config"
	"github.com/feliperocha/go-silhouette/internal/log"
	"gocv.io/x/gocv"
)

// FrameSource yields successive BGR frames. A false read is a
// recoverable condition; the loop decides when to give up.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// Camera is the webcam FrameSource backed by gocv.
type Camera struct {
	cap *gocv.VideoCapture
}

// OpenCamera opens the configured capture device and applies the
// requested resolution and frame rate. Drivers are free to ignore
// the requests; the loop measures frames as they actually arrive.
func OpenCamera(cfg config.CameraSettings) (*Camera, error) {
	cap, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrCameraOpen, cfg.DeviceID, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: device %d", ErrCameraOpen, cfg.DeviceID)
	}

	cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	log.Info("camera opened",
		"device", cfg.DeviceID,
		"width", int(cap.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(cap.Get(gocv.VideoCaptureFrameHeight)),
		"fps", cap.Get(gocv.VideoCaptureFPS))

	return &Camera{cap: cap}, nil
}

// Read grabs the next frame into dst.
func (c *Camera) Read(dst *gocv.Mat) bool {
	if !c.cap.Read(dst) {
		return false
	}
	return !dst.Empty()
}

// Close releases the capture device.
func (c *Camera) Close() error {
	return c.cap.Close()
}
