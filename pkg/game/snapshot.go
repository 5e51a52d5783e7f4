package game

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// DirSink persists victory frames as JPEG files in a directory. The
// filename carries the timestamp and the final fill percentage, plus
// a short random suffix so two wins in the same second never collide.
type DirSink struct {
	dir string
}

// NewDirSink creates the snapshot directory if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot dir: %w", err)
	}
	return &DirSink{dir: dir}, nil
}

// Save writes the frame and returns the file path.
func (s *DirSink) Save(frame gocv.Mat, fillPercent float64) (string, error) {
	name := fmt.Sprintf("victory_%s_%.1f_%s.jpg",
		time.Now().Format("20060102_150405"),
		fillPercent,
		uuid.NewString()[:8])
	path := filepath.Join(s.dir, name)

	if ok := gocv.IMWrite(path, frame); !ok {
		return "", fmt.Errorf("failed to write snapshot %s", path)
	}
	return path, nil
}
