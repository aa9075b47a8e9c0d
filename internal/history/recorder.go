package history

import (
	"context"
	"sync"
	"time"

	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/obslog"
	"go.uber.org/zap"
)

// Sink is where the recorder writes. *Service satisfies it.
type Sink interface {
	RecordOutcome(ctx context.Context, o domain.BattleOutcome) error
	RecordAnswer(ctx context.Context, playerID string, wordID int64, correct bool, at time.Time) (*domain.WordProgress, error)
}

type RecorderOptions struct {
	Buffer  int
	Timeout time.Duration
	Logger  *zap.Logger
}

type answer struct {
	playerID string
	wordID   int64
	correct  bool
	at       time.Time
}

type job struct {
	outcome *domain.BattleOutcome
	answer  *answer
}

// Recorder writes outcomes and answers on a background goroutine so that
// callers on the match path never wait for storage. Failures are logged and
// dropped.
type Recorder struct {
	sink    Sink
	jobs    chan job
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewRecorder(sink Sink, opts RecorderOptions) *Recorder {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = obslog.L()
	}
	r := &Recorder{
		sink:    sink,
		jobs:    make(chan job, opts.Buffer),
		timeout: opts.Timeout,
		logger:  opts.Logger,
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues a finished battle. It never blocks.
func (r *Recorder) Record(o domain.BattleOutcome) {
	r.enqueue(job{outcome: &o}, zap.String("match_id", o.MatchID))
}

// RecordAnswer queues one answer for the player's word progress.
func (r *Recorder) RecordAnswer(playerID string, wordID int64, correct bool, at time.Time) {
	r.enqueue(job{answer: &answer{playerID: playerID, wordID: wordID, correct: correct, at: at}},
		zap.String("player_id", playerID), zap.Int64("word_id", wordID))
}

func (r *Recorder) enqueue(j job, fields ...zap.Field) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("history_recorder_closed", fields...)
		return false
	}
	select {
	case r.jobs <- j:
		return true
	default:
		r.logger.Warn("history_queue_full", fields...)
		return false
	}
}

// Close stops accepting work and waits for queued jobs to drain or ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for j := range r.jobs {
		r.handle(j)
	}
}

func (r *Recorder) handle(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	switch {
	case j.outcome != nil:
		if err := r.sink.RecordOutcome(ctx, *j.outcome); err != nil {
			r.logger.Error("outcome_persist_error", zap.String("match_id", j.outcome.MatchID), zap.Error(err))
		}
	case j.answer != nil:
		a := j.answer
		if _, err := r.sink.RecordAnswer(ctx, a.playerID, a.wordID, a.correct, a.at); err != nil {
			r.logger.Warn("progress_persist_error", zap.String("player_id", a.playerID), zap.Int64("word_id", a.wordID), zap.Error(err))
		}
	}
}
