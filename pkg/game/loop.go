// Package game runs the capture, detection, and scoring loop as a
// supervised worker. The foreground talks to it exclusively through
// the command and result channels.
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/feliperocha/go-silhouette/internal/config"
	"github.com/feliperocha/go-silhouette/internal/log"
	"github.com/feliperocha/go-silhouette/pkg/hub"
	"github.com/feliperocha/go-silhouette/pkg/mask"
	"github.com/feliperocha/go-silhouette/pkg/perf"
	"github.com/feliperocha/go-silhouette/pkg/pose"
	"github.com/feliperocha/go-silhouette/pkg/protocol"
	"github.com/feliperocha/go-silhouette/pkg/session"
	"gocv.io/x/gocv"
)

// maxConsecutiveReadFailures bounds camera retry before the loop
// gives up and reports an error result.
const maxConsecutiveReadFailures = 30

// Player-facing hints derived from detection quality.
const (
	hintStepIntoFrame = "no pose detected - step into frame"
	hintMoveCloser    = "move closer to the camera"
)

// Loop is the game worker body. Construct once, then hand Run to the
// supervisor.
type Loop struct {
	store    *config.Store
	detector pose.Detector
	target   *mask.Target
	ctrl     *perf.Controller
	source   FrameSource

	snapshots session.SnapshotSink
	stats     session.StatsRecorder
	statusHub *hub.Hub
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

// WithSnapshots sets the victory snapshot sink.
func WithSnapshots(sink session.SnapshotSink) LoopOption {
	return func(l *Loop) { l.snapshots = sink }
}

// WithStats sets the end-of-round stats recorder.
func WithStats(rec session.StatsRecorder) LoopOption {
	return func(l *Loop) { l.stats = rec }
}

// WithStatusHub sets the hub that receives live status broadcasts.
func WithStatusHub(h *hub.Hub) LoopOption {
	return func(l *Loop) { l.statusHub = h }
}

// NewLoop wires the loop's collaborators. source, detector, target,
// and ctrl must be non-nil; the options are not.
func NewLoop(store *config.Store, source FrameSource, detector pose.Detector, target *mask.Target, ctrl *perf.Controller, opts ...LoopOption) *Loop {
	l := &Loop{
		store:    store,
		source:   source,
		detector: detector,
		target:   target,
		ctrl:     ctrl,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// sessionConfig maps the stored game settings onto round rules.
func (l *Loop) sessionConfig() session.Config {
	game := l.store.Game()
	return session.Config{
		Duration:      game.Duration(),
		WinThreshold:  game.WinThreshold,
		MinBodyPixels: game.MinBodyPixels,
	}
}

// Run is the worker entry point. It reads frames until told to stop,
// scoring them against the target whenever a round is active. It
// satisfies the supervisor Entry contract.
func (l *Loop) Run(ctx context.Context, commands <-chan *protocol.Message, results chan<- *protocol.Message) error {
	frame := gocv.NewMat()
	defer frame.Close()
	procFrame := gocv.NewMat()
	defer procFrame.Close()

	var (
		sess          *session.Session
		visible       bool
		frameIndex    uint64
		readFailures  int
		emptyFrames   int
		lastDetection pose.Result
		lastState     session.State
	)

	log.Info("game loop running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-commands:
			switch msg.Type {
			case protocol.TypeShowGame:
				sess = session.New(l.sessionConfig(), l.snapshots, l.stats)
				sess.Start()
				lastState = session.Running
				visible = true
			case protocol.TypeHideGame:
				visible = false
			case protocol.TypeStop, protocol.TypeExit:
				log.Info("game loop stopping", "command", msg.Type)
				return nil
			}
			continue
		default:
		}

		iterStart := time.Now()

		if !l.source.Read(&frame) {
			readFailures++
			log.Warn("camera read failed", "consecutive", readFailures)
			if readFailures >= maxConsecutiveReadFailures {
				l.pushResult(results, protocol.TypeError,
					protocol.ErrorData{Reason: ErrCameraRead.Error()})
				return fmt.Errorf("%w: %d consecutive failures", ErrCameraRead, readFailures)
			}
			continue
		}
		readFailures = 0

		if l.ctrl.ShouldSkipFrame(frameIndex) {
			frameIndex++
			continue
		}
		frameIndex++

		if l.store.Visual().Mirror {
			gocv.Flip(frame, &frame, 1)
		}
		l.ctrl.OptimizeFrame(frame, &procFrame)

		var detectTime time.Duration
		if !l.ctrl.ShouldSkipDetection(frameIndex - 1) {
			detectStart := time.Now()
			result, err := l.detector.Detect(procFrame)
			detectTime = time.Since(detectStart)
			if err != nil {
				log.Warn("pose detection failed", "error", err)
				result = pose.Result{}
			}
			lastDetection = result
		}

		if lastDetection.Detected() {
			emptyFrames = 0
		} else {
			emptyFrames++
		}

		if visible && sess != nil {
			l.scoreFrame(sess, procFrame, frame, lastDetection.Landmarks, &lastState, results)
		}

		frameTime := time.Since(iterStart)
		fps := 0.0
		if frameTime > 0 {
			fps = float64(time.Second) / float64(frameTime)
		}
		l.ctrl.UpdateMetrics(fps, frameTime, detectTime)

		if l.statusHub != nil && visible && sess != nil {
			l.broadcastStatus(sess, fps, emptyFrames)
		}
	}
}

// scoreFrame builds the body mask for the processed frame, feeds the
// session, and publishes a result message on a terminal transition.
// The original full-resolution frame is what gets snapshotted.
func (l *Loop) scoreFrame(sess *session.Session, procFrame, fullFrame gocv.Mat, landmarks []pose.Keypoint, lastState *session.State, results chan<- *protocol.Message) {
	w, h := procFrame.Cols(), procFrame.Rows()
	bodyMask := mask.BuildBodyMask(landmarks, w, h, l.buildOptions())
	defer bodyMask.Close()
	bodyPixels := gocv.CountNonZero(bodyMask)

	targetMask := l.target.At(w, h)
	st := sess.Update(fullFrame, bodyPixels, func() mask.Coverage {
		return mask.Score(bodyMask, targetMask)
	})

	if st.State.Terminal() && *lastState == session.Running {
		won, fill := sess.Result()
		l.pushResult(results, protocol.TypeResult, protocol.ResultData{
			Won:            won,
			FillPercentage: fill,
			BestPercentage: st.BestPercent,
			DurationSec:    st.Elapsed.Seconds(),
		})
	}
	*lastState = st.State
}

func (l *Loop) buildOptions() mask.BuildOptions {
	opts := mask.DefaultBuildOptions()
	if r := l.store.Visual().MaskRadius; r > 0 {
		opts.DiskRadius = r
	}
	return opts
}

// broadcastStatus pushes the live round view to dashboard clients.
func (l *Loop) broadcastStatus(sess *session.Session, fps float64, emptyFrames int) {
	st := sess.Status()
	status := protocol.StatusData{
		State:          st.State.String(),
		FillPercentage: st.FillPercent,
		BestPercentage: st.BestPercent,
		TimeLeftSec:    st.TimeLeft.Seconds(),
		FPS:            fps,
		QualityHint:    l.qualityHint(st, emptyFrames),
	}
	msg, err := protocol.NewMessage(protocol.TypeStatus, status)
	if err != nil {
		return
	}
	raw, err := msg.Bytes()
	if err != nil {
		return
	}
	l.statusHub.Broadcast(hub.NewJSONMessage(raw))
}

// qualityHint suggests what the player should do when detection is
// persistently weak. A few empty frames are normal; only a sustained
// absence surfaces a hint.
func (l *Loop) qualityHint(st session.Status, emptyFrames int) string {
	if st.State != session.Running {
		return ""
	}
	if emptyFrames >= 15 {
		return hintStepIntoFrame
	}
	if emptyFrames == 0 && st.FillPercent == 0 {
		return hintMoveCloser
	}
	return ""
}

func (l *Loop) pushResult(results chan<- *protocol.Message, msgType protocol.MessageType, data interface{}) {
	msg, err := protocol.NewMessage(msgType, data)
	if err != nil {
		log.Error("failed to build result message", "error", err)
		return
	}
	select {
	case results <- msg:
	default:
		log.Warn("result channel full, dropping", "type", msgType)
	}
}
