package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/polkiloo/payouts/internal/adapter/upstream"
	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/domain/model"
)

type settlerStub struct {
	sync.Mutex
	pending   []model.Withdrawal
	pendErr   error
	processFn func(model.Withdrawal) error
	processed []uuid.UUID
	resets    int
}

func (s *settlerStub) Pending(context.Context, int) ([]model.Withdrawal, error) {
	s.Lock()
	defer s.Unlock()
	return s.pending, s.pendErr
}

func (s *settlerStub) Process(_ context.Context, w model.Withdrawal) error {
	s.Lock()
	s.processed = append(s.processed, w.ID)
	fn := s.processFn
	s.Unlock()
	if fn != nil {
		return fn(w)
	}
	return nil
}

func (s *settlerStub) ResetStale(context.Context) (int, error) {
	s.Lock()
	defer s.Unlock()
	s.resets++
	return 0, nil
}

func (s *settlerStub) processedCount() int {
	s.Lock()
	defer s.Unlock()
	return len(s.processed)
}

func retryConfig() config.RetryConfig {
	return config.RetryConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		Limit:        5,
		BackoffBase:  time.Minute,
		BackoffMax:   time.Hour,
	}
}

func TestNewRetryWorkerDefaults(t *testing.T) {
	w := NewRetryWorker(&settlerStub{}, config.RetryConfig{}, zap.NewNop())
	if w.cfg.BatchSize != 1 {
		t.Fatalf("expected batch size default to 1, got %d", w.cfg.BatchSize)
	}
	if w.loop.interval != time.Second {
		t.Fatalf("expected default interval, got %v", w.loop.interval)
	}
}

func TestRetryWorkerSkipsItemsInBackoff(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ready := model.Withdrawal{ID: uuid.New(), Attempts: 1, UpdatedAt: now.Add(-2 * time.Minute)}
	waiting := model.Withdrawal{ID: uuid.New(), Attempts: 2, UpdatedAt: now.Add(-time.Minute)}
	fresh := model.Withdrawal{ID: uuid.New(), UpdatedAt: now}
	settler := &settlerStub{pending: []model.Withdrawal{ready, waiting, fresh}}

	w := NewRetryWorker(settler, retryConfig(), zap.NewNop())
	w.now = func() time.Time { return now }
	w.RunOnce(context.Background())

	if len(settler.processed) != 2 || settler.processed[0] != ready.ID || settler.processed[1] != fresh.ID {
		t.Fatalf("unexpected processed set %v", settler.processed)
	}
	if settler.resets != 1 {
		t.Fatalf("expected one stale sweep, got %d", settler.resets)
	}
}

func TestRetryWorkerContinuesAfterFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	first := model.Withdrawal{ID: uuid.New()}
	second := model.Withdrawal{ID: uuid.New()}
	settler := &settlerStub{
		pending: []model.Withdrawal{first, second},
		processFn: func(w model.Withdrawal) error {
			if w.ID == first.ID {
				return errors.New("gateway timeout")
			}
			return nil
		},
	}

	NewRetryWorker(settler, retryConfig(), zap.New(core)).RunOnce(context.Background())

	if len(settler.processed) != 2 {
		t.Fatalf("expected both items processed, got %d", len(settler.processed))
	}
	if logs.FilterMessage("settle withdrawal failed").Len() != 1 {
		t.Fatal("expected failure warning")
	}
}

func TestRetryWorkerHonoursRateLimit(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	settler := &settlerStub{
		pending: []model.Withdrawal{{ID: uuid.New()}, {ID: uuid.New()}},
		processFn: func(model.Withdrawal) error {
			return upstream.TooManyRequestsError{Service: "custody", RetryAfter: time.Hour}
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	NewRetryWorker(settler, retryConfig(), zap.New(core)).RunOnce(ctx)

	if len(settler.processed) != 1 {
		t.Fatalf("expected the pass to stop while rate limited, got %d", len(settler.processed))
	}
	if logs.FilterMessage("rail rate limited").Len() != 1 {
		t.Fatal("expected rate limit warning")
	}
}

func TestRetryWorkerPendingError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	settler := &settlerStub{pendErr: errors.New("db down")}

	NewRetryWorker(settler, retryConfig(), zap.New(core)).RunOnce(context.Background())

	if settler.processedCount() != 0 {
		t.Fatal("nothing should be processed")
	}
	if logs.FilterMessage("fetch pending withdrawals failed").Len() != 1 {
		t.Fatal("expected error log")
	}
}

func TestRetryWorkerStartStop(t *testing.T) {
	settler := &settlerStub{pending: []model.Withdrawal{{ID: uuid.New()}}}
	w := NewRetryWorker(settler, retryConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	deadline := time.After(time.Second)
	for settler.processedCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for processing")
		case <-time.After(5 * time.Millisecond):
		}
	}
	w.Stop()
	w.Stop()
}
