package persist

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// BatchWriter persists journal batches. *JournalRepo implements it.
type BatchWriter interface {
	WriteBatch(ctx context.Context, entries []JournalEntry) error
}

// Journal hands entries from the game loop to a background flusher.
// Record never blocks: when the buffer is full the entry is dropped and counted.
type Journal struct {
	repo     BatchWriter
	ch       chan JournalEntry
	batch    int
	interval time.Duration
	log      *zap.Logger

	seq     atomic.Int64
	dropped atomic.Uint64
	written atomic.Uint64
	failed  atomic.Uint64
}

func NewJournal(repo BatchWriter, buffer, batch int, interval time.Duration, log *zap.Logger) *Journal {
	if batch <= 0 {
		batch = 64
	}
	if interval <= 0 {
		interval = time.Second
	}
	j := &Journal{
		repo:     repo,
		ch:       make(chan JournalEntry, buffer),
		batch:    batch,
		interval: interval,
		log:      log,
	}
	// Seeded from the clock so sequence numbers keep growing across restarts.
	j.seq.Store(time.Now().UnixNano())
	return j
}

// Record stamps the entry with the next sequence number and queues it for
// the flusher.
func (j *Journal) Record(e JournalEntry) {
	e.Seq = j.seq.Add(1)
	select {
	case j.ch <- e:
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns the number of entries lost to a full buffer.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Written returns the number of entries persisted.
func (j *Journal) Written() uint64 { return j.written.Load() }

// Failed returns the number of entries lost to write errors.
func (j *Journal) Failed() uint64 { return j.failed.Load() }

// Run flushes batches until ctx is done, then drains what is buffered.
func (j *Journal) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	pending := make([]JournalEntry, 0, j.batch)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-j.ch:
					pending = append(pending, e)
				default:
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					j.flush(shutdownCtx, pending)
					cancel()
					return nil
				}
			}
		case e := <-j.ch:
			pending = append(pending, e)
			if len(pending) >= j.batch {
				j.flush(ctx, pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			if len(pending) > 0 {
				j.flush(ctx, pending)
				pending = pending[:0]
			}
		}
	}
}

func (j *Journal) flush(ctx context.Context, entries []JournalEntry) {
	if len(entries) == 0 {
		return
	}
	if err := j.repo.WriteBatch(ctx, entries); err != nil {
		j.failed.Add(uint64(len(entries)))
		j.log.Error("effect journal 寫入失敗", zap.Int("entries", len(entries)), zap.Error(err))
		return
	}
	j.written.Add(uint64(len(entries)))
}
