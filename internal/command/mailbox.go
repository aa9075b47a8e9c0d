package command

import (
	"context"
	"errors"
	"sync"

	"github.com/park285/vocab-battle-bot/internal/obslog"
	"go.uber.org/zap"
)

const defaultMailboxDepth = 32

var ErrMailboxClosed = errors.New("command mailbox is closed")

// HandleFunc executes one inbound message.
type HandleFunc func(ctx context.Context, in Inbound) error

type MailboxOptions struct {
	// Depth bounds the backlog per player; messages beyond it are dropped.
	Depth  int
	Logger *zap.Logger
}

// Mailbox runs messages of the same player one at a time, in arrival order,
// while different players proceed in parallel. A player's worker exits once
// the backlog is empty.
type Mailbox struct {
	handle HandleFunc
	depth  int
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	backlog map[string][]Inbound
	closed  bool
	wg      sync.WaitGroup
}

func NewMailbox(handle HandleFunc, opts MailboxOptions) *Mailbox {
	if opts.Depth <= 0 {
		opts.Depth = defaultMailboxDepth
	}
	if opts.Logger == nil {
		opts.Logger = obslog.L()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Mailbox{
		handle:  handle,
		depth:   opts.Depth,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		backlog: make(map[string][]Inbound),
	}
}

// Post queues in behind the player's earlier messages without blocking.
func (m *Mailbox) Post(in Inbound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMailboxClosed
	}
	key := in.PlayerID
	queue, running := m.backlog[key]
	if len(queue) >= m.depth {
		m.logger.Warn("mailbox_overflow", zap.String("player_id", key), zap.Int("depth", m.depth))
		return nil
	}
	m.backlog[key] = append(queue, in)
	if !running {
		m.wg.Add(1)
		go m.drain(key)
	}
	return nil
}

func (m *Mailbox) drain(key string) {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		queue := m.backlog[key]
		if len(queue) == 0 {
			delete(m.backlog, key)
			m.mu.Unlock()
			return
		}
		in := queue[0]
		m.backlog[key] = queue[1:]
		m.mu.Unlock()

		if err := m.handle(m.ctx, in); err != nil && !errors.Is(err, ErrNotCommand) {
			m.logger.Debug("command_failed", zap.String("room", string(in.Room)), zap.String("player_id", in.PlayerID), zap.Error(err))
		}
	}
}

// Close stops accepting messages and waits for queued ones to finish. When
// ctx ends first, in-flight handlers see a cancelled context.
func (m *Mailbox) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	defer m.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
