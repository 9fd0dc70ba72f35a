package detection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Simulated confidence never reaches the extremes a live classifier can,
// so a saturated reading always means real detection.
const (
	simConfidenceFloor = 0.05
	simConfidenceCeil  = 0.95
)

// SimulatedConfig tunes the synthetic event stream.
type SimulatedConfig struct {
	Tick time.Duration
	// Seed of 0 means time-seeded (non-reproducible).
	Seed int64
}

// Simulated produces an infinite stream of synthetic detection events
// without touching any sensor or vision runtime. The driver state follows
// a two-state chain weighted toward alert, with occasional drowsy bursts,
// so downstream alerting sees realistic consecutive-event patterns.
type Simulated struct {
	tick   time.Duration
	logger *zap.Logger

	state    atomic.Int32
	events   chan Event
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rng        *rand.Rand
	confidence map[State]distuv.Beta

	// chain transition probabilities per tick
	pAlertToDrowsy float64
	pDrowsyToAlert float64
	pYawn          float64

	drowsy bool
}

func NewSimulated(cfg SimulatedConfig, logger *zap.Logger) *Simulated {
	if cfg.Tick <= 0 {
		cfg.Tick = 500 * time.Millisecond
	}
	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewSource(seed)

	return &Simulated{
		tick:   cfg.Tick,
		logger: logger,
		events: make(chan Event, 16),
		stopCh: make(chan struct{}),
		rng:    rand.New(src),
		confidence: map[State]distuv.Beta{
			StateAlert:  {Alpha: 8, Beta: 3, Src: src},
			StateDrowsy: {Alpha: 6, Beta: 2, Src: src},
		},
		pAlertToDrowsy: 0.08,
		pDrowsyToAlert: 0.35,
		pYawn:          0.05,
	}
}

func (s *Simulated) Source() Source { return SourceSimulated }

func (s *Simulated) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(stateCreated), int32(stateStarted)) {
		return ErrInvalidState
	}

	s.wg.Add(1)
	go s.run()

	s.logger.Info("Simulated detection started", zap.Duration("tick", s.tick))
	return nil
}

func (s *Simulated) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			ev := s.nextSynthetic(now)
			select {
			case s.events <- ev:
			case <-s.stopCh:
				return
			}
		}
	}
}

func (s *Simulated) nextSynthetic(now time.Time) Event {
	if s.drowsy {
		if s.rng.Float64() < s.pDrowsyToAlert {
			s.drowsy = false
		}
	} else {
		if s.rng.Float64() < s.pAlertToDrowsy {
			s.drowsy = true
		}
	}

	state := StateAlert
	if s.drowsy {
		state = StateDrowsy
	}

	conf := s.confidence[state].Rand()
	if conf < simConfidenceFloor {
		conf = simConfidenceFloor
	}
	if conf > simConfidenceCeil {
		conf = simConfidenceCeil
	}

	return Event{
		Timestamp:  now,
		State:      state,
		Confidence: conf,
		Source:     SourceSimulated,
		IsYawning:  !s.drowsy && s.rng.Float64() < s.pYawn,
	}
}

func (s *Simulated) NextEvent(ctx context.Context) (Event, error) {
	if lifecycle(s.state.Load()) != stateStarted {
		return Event{}, ErrInvalidState
	}

	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.stopCh:
		return Event{}, ErrStopped
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Stop ends the generator. Safe to call from any state, any number of times.
func (s *Simulated) Stop() {
	s.stopOnce.Do(func() {
		prev := lifecycle(s.state.Swap(int32(stateStopped)))
		close(s.stopCh)
		if prev == stateStarted {
			s.wg.Wait()
			s.logger.Info("Simulated detection stopped")
		}
	})
}
