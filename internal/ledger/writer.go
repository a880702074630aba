package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmcale/go-incident-dispatch/internal/models"
	"github.com/jmcale/go-incident-dispatch/internal/worker"
)

// Writer records entries asynchronously so allocation never waits on
// storage. Failed writes are retried with a bounded budget and then
// surfaced as PersistenceError in the log; the in-memory allocation
// decision stands either way.
type Writer struct {
	store Store
	pool  *worker.Pool
}

type WriterConfig struct {
	Workers     int
	BufferSize  int
	MaxAttempts int
	RetryDelay  time.Duration
}

func NewWriter(store Store, cfg WriterConfig) *Writer {
	w := &Writer{store: store}
	w.pool = worker.NewPool(cfg.Workers, cfg.BufferSize, cfg.MaxAttempts, cfg.RetryDelay, w.record, w.giveUp)
	return w
}

func (w *Writer) Start(ctx context.Context) {
	w.pool.Start(ctx)
}

func (w *Writer) Stop() {
	w.pool.Stop()
}

// Submit hands an entry to the pool. Never blocks; a full buffer is
// reported through the give-up path.
func (w *Writer) Submit(e *Entry) {
	w.pool.Submit(e)
}

func (w *Writer) record(ctx context.Context, payload any) error {
	return w.store.Record(ctx, payload.(*Entry))
}

func (w *Writer) giveUp(payload any, err error) {
	e := payload.(*Entry)
	perr := &models.PersistenceError{AssignmentID: e.AssignmentID, Err: err}
	slog.Error("ledger entry dropped",
		"error", perr,
		"entry_id", e.ID,
		"incident_id", e.IncidentID,
		"unit_id", e.UnitID,
		"event", string(e.Event),
	)
}
