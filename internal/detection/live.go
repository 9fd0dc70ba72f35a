package detection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// LiveConfig wires the live pipeline to the camera and the vision sidecar.
type LiveConfig struct {
	CameraDevice  string
	StreamURL     string
	FrameInterval time.Duration
	FrameTimeout  time.Duration
}

// frameMessage is one camera frame shipped to the vision sidecar.
type frameMessage struct {
	Type           string `json:"type"`
	Frame          string `json:"frame"`
	Timestamp      int64  `json:"timestamp"`
	SequenceNumber int32  `json:"sequence_number"`
}

// detectionMessage is the sidecar's verdict for one frame.
type detectionMessage struct {
	Type            string  `json:"type"`
	IsDrowsy        bool    `json:"is_drowsy"`
	IsYawning       bool    `json:"is_yawning"`
	DrowsinessScore float64 `json:"drowsiness_score"`
	InferenceTimeMs float64 `json:"inference_time_ms"`
	Timestamp       int64   `json:"timestamp"`
	SequenceNumber  int32   `json:"sequence_number"`
}

// Live captures camera frames and streams them to the vision inference
// sidecar over WebSocket, turning each verdict into an Event. It owns the
// camera handle and the socket; both are released on Stop or on failure.
type Live struct {
	cfg    LiveConfig
	logger *zap.Logger

	camera *CameraCapture

	state    atomic.Int32
	events   chan Event
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu   sync.Mutex
	conn *websocket.Conn

	// closed once when the pipeline dies mid-run
	failCh chan struct{}
}

func NewLive(cfg LiveConfig, logger *zap.Logger) *Live {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 33 * time.Millisecond
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = 2 * time.Second
	}
	return &Live{
		cfg:    cfg,
		logger: logger,
		camera: NewCameraCapture(cfg.CameraDevice),
		events: make(chan Event, 16),
		stopCh: make(chan struct{}),
		failCh: make(chan struct{}),
	}
}

func (l *Live) Source() Source { return SourceLive }

// Start acquires the camera and the sidecar stream. Any acquisition failure
// is reported as ErrEnvironmentUnavailable so the caller can fall back.
func (l *Live) Start(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(stateCreated), int32(stateStarted)) {
		return ErrInvalidState
	}

	probeCtx, cancel := context.WithTimeout(ctx, l.cfg.FrameTimeout)
	defer cancel()
	if !l.camera.Available(probeCtx) {
		l.state.Store(int32(stateStopped))
		return fmt.Errorf("camera %s: %w", l.cfg.CameraDevice, ErrEnvironmentUnavailable)
	}

	dialer := websocket.Dialer{HandshakeTimeout: l.cfg.FrameTimeout}
	conn, _, err := dialer.DialContext(ctx, l.cfg.StreamURL, nil)
	if err != nil {
		l.state.Store(int32(stateStopped))
		return fmt.Errorf("vision sidecar %s: %v: %w", l.cfg.StreamURL, err, ErrEnvironmentUnavailable)
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	l.wg.Add(1)
	go l.run()

	l.logger.Info("Live detection started",
		zap.String("camera", l.cfg.CameraDevice),
		zap.String("sidecar", l.cfg.StreamURL))
	return nil
}

func (l *Live) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.FrameInterval)
	defer ticker.Stop()

	var seq int32
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			seq++
			ev, err := l.processFrame(seq)
			if err != nil {
				select {
				case <-l.stopCh:
					return
				default:
				}
				l.logger.Error("Live pipeline failed", zap.Int32("sequence", seq), zap.Error(err))
				close(l.failCh)
				return
			}
			select {
			case l.events <- ev:
			case <-l.stopCh:
				return
			}
		}
	}
}

func (l *Live) processFrame(seq int32) (Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.FrameTimeout)
	defer cancel()

	frame, err := l.camera.CaptureFrame(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("capture: %w", err)
	}

	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return Event{}, fmt.Errorf("sidecar connection closed")
	}

	msg := frameMessage{
		Type:           "FRAME",
		Frame:          base64.StdEncoding.EncodeToString(frame),
		Timestamp:      time.Now().UnixMilli(),
		SequenceNumber: seq,
	}

	conn.SetWriteDeadline(time.Now().Add(l.cfg.FrameTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		return Event{}, fmt.Errorf("send frame: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(l.cfg.FrameTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return Event{}, fmt.Errorf("read verdict: %w", err)
	}

	var verdict detectionMessage
	if err := json.Unmarshal(data, &verdict); err != nil {
		return Event{}, fmt.Errorf("decode verdict: %w", err)
	}

	return eventFromVerdict(verdict), nil
}

func eventFromVerdict(v detectionMessage) Event {
	state := StateAlert
	if v.IsDrowsy {
		state = StateDrowsy
	}
	conf := v.DrowsinessScore
	if conf < 0 || conf > 1 {
		state = StateUnknown
		conf = 0
	}
	ts := time.UnixMilli(v.Timestamp)
	if v.Timestamp == 0 {
		ts = time.Now()
	}
	return Event{
		Timestamp:  ts,
		State:      state,
		Confidence: conf,
		Source:     SourceLive,
		IsYawning:  v.IsYawning,
	}
}

func (l *Live) NextEvent(ctx context.Context) (Event, error) {
	if lifecycle(l.state.Load()) != stateStarted {
		return Event{}, ErrInvalidState
	}
	// Drain buffered events first so nothing is lost on fallback.
	select {
	case ev := <-l.events:
		return ev, nil
	default:
	}

	select {
	case ev := <-l.events:
		return ev, nil
	case <-l.failCh:
		return Event{}, ErrEnvironmentUnavailable
	case <-l.stopCh:
		return Event{}, ErrStopped
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Stop closes the sidecar stream and ends the frame loop. Idempotent.
func (l *Live) Stop() {
	l.stopOnce.Do(func() {
		prev := lifecycle(l.state.Swap(int32(stateStopped)))
		close(l.stopCh)

		l.mu.Lock()
		if l.conn != nil {
			l.conn.Close()
			l.conn = nil
		}
		l.mu.Unlock()

		if prev == stateStarted {
			l.wg.Wait()
			l.logger.Info("Live detection stopped")
		}
	})
}
