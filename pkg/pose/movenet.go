package pose

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Config holds detector configuration.
type Config struct {
	ModelPath string  // Path to ONNX model
	InputSize int     // Model input side length (square)
	MinScore  float64 // Keypoints below this score are zeroed out
}

// DefaultConfig returns production defaults for MoveNet Lightning.
func DefaultConfig() Config {
	return Config{
		ModelPath: "models/movenet_singlepose_lightning.onnx",
		InputSize: 192,
		MinScore:  0.1,
	}
}

// MoveNetDetector runs MoveNet single-pose inference through OpenCV's
// DNN module. Output is one landmark set of NumLandmarks keypoints.
type MoveNetDetector struct {
	net    gocv.Net
	config Config
	mu     sync.Mutex // Protects inference
}

// NewMoveNet loads the ONNX model and prepares the network.
func NewMoveNet(cfg Config) (*MoveNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model: %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &MoveNetDetector{
		net:    net,
		config: cfg,
	}, nil
}

// Detect runs inference on the frame and returns the landmark set.
// Keypoints scoring below MinScore keep their coordinates but report
// zero visibility, so FilterVisible drops them.
func (d *MoveNetDetector) Detect(frame gocv.Mat) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame.Empty() {
		return Result{}, fmt.Errorf("empty frame")
	}

	side := d.config.InputSize
	blob := gocv.BlobFromImage(frame, 1.0, image.Pt(side, side),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	// MoveNet output is [1,1,17,3] float32: (y, x, score) per keypoint,
	// coordinates normalized to the input square.
	data, err := out.DataPtrFloat32()
	if err != nil {
		return Result{}, fmt.Errorf("read model output: %w", err)
	}
	if len(data) < NumLandmarks*3 {
		return Result{}, fmt.Errorf("unexpected model output size %d", len(data))
	}

	landmarks := make([]Keypoint, NumLandmarks)
	detected := false
	for i := 0; i < NumLandmarks; i++ {
		y := float64(data[i*3])
		x := float64(data[i*3+1])
		score := float64(data[i*3+2])

		if score < d.config.MinScore {
			score = 0
		} else {
			detected = true
		}

		landmarks[i] = Keypoint{X: x, Y: y, Visibility: score}
	}

	if !detected {
		return Result{}, nil
	}
	return Result{Landmarks: landmarks}, nil
}

// Close releases the network.
func (d *MoveNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
