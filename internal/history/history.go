// Package history keeps a bounded per-user log of issued commands.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/aviabot/core/logger"
)

// DefaultLimit is the number of entries kept per user. It is also the
// ceiling: WithLimit never raises it.
const DefaultLimit = 10

// Entry is one recorded command.
type Entry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Command   string    `db:"command"`
	CreatedAt time.Time `db:"created_at"`
}

// Repository stores entries. Append must drop the oldest entries of the user
// (by CreatedAt, then ID) so that at most limit remain after the insert,
// atomically with it.
type Repository interface {
	Append(ctx context.Context, userID int64, command string, limit int) (evicted bool, err error)
	List(ctx context.Context, userID int64) ([]Entry, error)
}

// Metrics receives history write outcomes. A nil Metrics is ignored.
type Metrics interface {
	HistoryWrite(ok, evicted bool)
}

// Log records commands per user, keeping at most Limit entries each.
type Log struct {
	repo    Repository
	limit   int
	metrics Metrics
}

// Option customises a Log.
type Option func(*Log)

// WithLimit lowers the per-user capacity. Values outside 1..DefaultLimit are ignored.
func WithLimit(n int) Option {
	return func(l *Log) {
		if n > 0 && n <= DefaultLimit {
			l.limit = n
		}
	}
}

// WithMetrics reports writes to m.
func WithMetrics(m Metrics) Option {
	return func(l *Log) { l.metrics = m }
}

// NewLog builds a Log over repo.
func NewLog(repo Repository, opts ...Option) *Log {
	l := &Log{repo: repo, limit: DefaultLimit}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends command for userID. Errors are returned for logging only;
// callers carry on with the command.
func (l *Log) Record(ctx context.Context, userID int64, command string) error {
	start := time.Now()
	evicted, err := l.repo.Append(ctx, userID, command, l.limit)
	if l.metrics != nil {
		l.metrics.HistoryWrite(err == nil, evicted)
	}
	if err != nil {
		logger.Warn(ctx, logger.CompHistory, "history.record",
			slog.String("status", "fail"),
			slog.String("command", command),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("history: record: %w", err)
	}
	logger.Debug(ctx, logger.CompHistory, "history.record",
		slog.String("status", "ok"),
		slog.String("command", command),
		slog.Bool("evicted", evicted),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// List returns the user's commands oldest first; empty when there are none.
func (l *Log) List(ctx context.Context, userID int64) ([]string, error) {
	entries, err := l.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Command)
	}
	return out, nil
}
