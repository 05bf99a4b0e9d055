package overrides

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
)

type writeRequest struct {
	ctx   context.Context
	apply func(ctx context.Context) error
	reply chan error
}

// Writer owns all mutations of a Store for the lifetime of a batch. Workers
// submit writes through a queue; one goroutine applies them in arrival order
// and acknowledges each only after it is persisted. Reads go straight to the
// store.
type Writer struct {
	store *Store
	reqs  chan writeRequest
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
	log   *logrus.Logger
}

// NewWriter starts the writer goroutine. Close must be called to stop it.
func NewWriter(store *Store, queueSize int, logger *logrus.Logger) *Writer {
	if queueSize < 0 {
		queueSize = 0
	}
	w := &Writer{
		store: store,
		reqs:  make(chan writeRequest, queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		log:   logger,
	}
	go w.run()
	return w
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case req := <-w.reqs:
			req.reply <- req.apply(req.ctx)
		case <-w.quit:
			// Apply what was queued before Close so no acknowledged submit is lost.
			for {
				select {
				case req := <-w.reqs:
					req.reply <- req.apply(req.ctx)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) submit(ctx context.Context, apply func(ctx context.Context) error) error {
	req := writeRequest{ctx: ctx, apply: apply, reply: make(chan error, 1)}
	select {
	case <-w.quit:
		return ErrWriterClosed
	default:
	}
	select {
	case w.reqs <- req:
	case <-w.quit:
		return ErrWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-w.done:
		// The loop may have exited between accepting and draining.
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrWriterClosed
		}
	}
}

// RecordFailure queues a failure record and waits until it is persisted.
func (w *Writer) RecordFailure(ctx context.Context, key string, info domain.Document, succeeded, failed []string) error {
	return w.submit(ctx, func(ctx context.Context) error {
		return w.store.RecordFailure(ctx, key, info, succeeded, failed)
	})
}

// SetCleaned queues a cleaned-list replacement.
func (w *Writer) SetCleaned(ctx context.Context, key string, cleaned []string) error {
	return w.submit(ctx, func(ctx context.Context) error {
		return w.store.SetCleaned(ctx, key, cleaned)
	})
}

// SetCorrectGene queues a curated gene.
func (w *Writer) SetCorrectGene(ctx context.Context, key string, gene domain.Gene) error {
	return w.submit(ctx, func(ctx context.Context) error {
		return w.store.SetCorrectGene(ctx, key, gene)
	})
}

// BumpVersion queues a version increment and returns the new version.
func (w *Writer) BumpVersion(ctx context.Context) (int, error) {
	var version int
	err := w.submit(ctx, func(ctx context.Context) error {
		v, err := w.store.BumpVersion(ctx)
		version = v
		return err
	})
	return version, err
}

// Contains reports whether an entry exists for key.
func (w *Writer) Contains(key string) bool { return w.store.Contains(key) }

// GetCleaned returns the curated descriptions for key.
func (w *Writer) GetCleaned(key string) []string { return w.store.GetCleaned(key) }

// GetEntry returns a copy of the entry for key.
func (w *Writer) GetEntry(key string) (*Entry, bool) { return w.store.GetEntry(key) }

// Keys returns all entry ids in sorted order.
func (w *Writer) Keys() []string { return w.store.Keys() }

// Version returns the store version.
func (w *Writer) Version() int { return w.store.Version() }

// Store returns the underlying store.
func (w *Writer) Store() *Store { return w.store }

// Close stops the writer after applying queued writes. It does not close the store.
func (w *Writer) Close() {
	w.once.Do(func() {
		close(w.quit)
		<-w.done
		if w.log != nil {
			w.log.Debug("Override writer stopped")
		}
	})
}
