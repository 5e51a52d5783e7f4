// Package config provides the persistent settings and statistics store
// for go-silhouette. Settings live in a single JSON document; loading
// merges the file over built-in defaults field by field, so a partial
// or older config file never loses keys.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GameSettings holds the round rules.
type GameSettings struct {
	// DurationSec is the round time budget in seconds.
	DurationSec int `json:"duration"`

	// WinThreshold is the fill percentage needed to win (0-100).
	WinThreshold float64 `json:"win_threshold"`

	// MinBodyPixels is the minimum body mask size for a detection
	// to count as valid. Below it the last score is held; at zero
	// the score resets.
	MinBodyPixels int `json:"min_body_pixels"`

	// TargetPath is the target silhouette asset on disk.
	TargetPath string `json:"target_path"`

	// SnapshotsDir receives victory snapshots.
	SnapshotsDir string `json:"snapshots_dir"`
}

// Duration returns the round budget as a time.Duration.
func (g GameSettings) Duration() time.Duration {
	return time.Duration(g.DurationSec) * time.Second
}

// CameraSettings holds capture device configuration.
type CameraSettings struct {
	DeviceID int `json:"device_id"`
	Width    int `json:"resolution_width"`
	Height   int `json:"resolution_height"`
	FPS      int `json:"fps"`
}

// VisualSettings holds presentation toggles read by the loop.
type VisualSettings struct {
	// Mirror flips frames horizontally so the player sees
	// themselves as in a mirror.
	Mirror bool `json:"camera_mirror"`

	// MaskRadius is the disk radius stamped at each landmark,
	// in pixels at 720p (scaled with frame height).
	MaskRadius int `json:"mask_radius"`
}

// Stats holds aggregate player statistics.
type Stats struct {
	GamesPlayed    int     `json:"games_played"`
	GamesWon       int     `json:"games_won"`
	BestPercent    float64 `json:"best_percentage"`
	BestTimeSec    float64 `json:"best_time"`
	PlaytimeSec    float64 `json:"total_playtime"`
	SnapshotsSaved int     `json:"photos_saved"`
}

// Config is the full persisted document.
type Config struct {
	Game   GameSettings   `json:"game"`
	Camera CameraSettings `json:"camera"`
	Visual VisualSettings `json:"visual"`
	Stats  Stats          `json:"stats"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Game: GameSettings{
			DurationSec:   300,
			WinThreshold:  30.0,
			MinBodyPixels: 1000,
			TargetPath:    "assets/target.png",
			SnapshotsDir:  "snapshots",
		},
		Camera: CameraSettings{
			DeviceID: 0,
			Width:    1280,
			Height:   720,
			FPS:      30,
		},
		Visual: VisualSettings{
			Mirror:     true,
			MaskRadius: 30,
		},
	}
}

// Validate checks settings ranges. Returns a list of problems, or nil.
func (c *Config) Validate() []string {
	var errs []string
	if c.Game.DurationSec <= 0 {
		errs = append(errs, "game.duration must be positive")
	}
	if c.Game.WinThreshold <= 0 || c.Game.WinThreshold > 100 {
		errs = append(errs, "game.win_threshold must be in (0, 100]")
	}
	if c.Game.MinBodyPixels < 0 {
		errs = append(errs, "game.min_body_pixels must not be negative")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, "camera resolution must be positive")
	}
	if c.Visual.MaskRadius <= 0 {
		errs = append(errs, "visual.mask_radius must be positive")
	}
	return errs
}

// Store owns the config document and its file. All methods are safe
// for concurrent use.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  Config
}

// Load reads the config file at path, merging it over defaults.
// A missing file is not an error; the defaults are written out so
// the player has a file to edit.
func Load(path string) (*Store, error) {
	s := &Store{path: path, cfg: Default()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Unmarshal into the defaults-populated struct: keys present in
	// the file override, absent keys keep their defaults.
	if err := json.Unmarshal(data, &s.cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if errs := s.cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config %s: %v", path, errs)
	}

	return s, nil
}

// Config returns a copy of the current document.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Game returns the current game settings.
func (s *Store) Game() GameSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Game
}

// Camera returns the current camera settings.
func (s *Store) Camera() CameraSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Camera
}

// Visual returns the current visual settings.
func (s *Store) Visual() VisualSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Visual
}

// Stats returns the current aggregate statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Stats
}

// Update applies fn to the document under the lock, validates the
// result, and persists it. An update that fails validation is rolled
// back and never written, so the file on disk stays loadable.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cfg
	fn(&s.cfg)
	if errs := s.cfg.Validate(); len(errs) > 0 {
		s.cfg = prev
		return fmt.Errorf("invalid config update: %v", errs)
	}
	return s.save()
}

// StatsUpdate carries the results of one finished round.
type StatsUpdate struct {
	Won           bool
	FillPercent   float64
	TimeToWin     time.Duration // meaningful only when Won
	Playtime      time.Duration
	SnapshotSaved bool
}

// ApplyRound folds one round into the aggregate statistics:
// counters and playtime accumulate, bests only ever improve.
func (s *Store) ApplyRound(u StatsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.cfg.Stats
	st.GamesPlayed++
	st.PlaytimeSec += u.Playtime.Seconds()
	if u.FillPercent > st.BestPercent {
		st.BestPercent = u.FillPercent
	}
	if u.Won {
		st.GamesWon++
		t := u.TimeToWin.Seconds()
		if st.BestTimeSec == 0 || t < st.BestTimeSec {
			st.BestTimeSec = t
		}
	}
	if u.SnapshotSaved {
		st.SnapshotsSaved++
	}

	return s.save()
}

// save writes the document. Callers hold the lock.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.cfg, "", "    ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o644)
}
