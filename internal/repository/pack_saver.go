package repository

import (
	"context"
	"sync"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/debug"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

type packJob struct {
	data []byte
	id   objects.ID
}

// PackSaver fans pack writes out to a bounded pool of workers writing
// concurrently to the backend. Enqueue blocks once the channel is full,
// providing backpressure against producers that flush packers faster than
// the backend can absorb them. Write errors are logged, not surfaced
// synchronously: callers observe failure later, when flush or verify finds
// a pack or index inconsistency.
type PackSaver struct {
	be backend.Backend

	jobs chan packJob
	wg   sync.WaitGroup
}

// NewPackSaver starts concurrency worker goroutines writing packs to be.
func NewPackSaver(be backend.Backend, concurrency int) *PackSaver {
	if concurrency < 1 {
		concurrency = 1
	}
	ps := &PackSaver{
		be:   be,
		jobs: make(chan packJob, concurrency),
	}
	ps.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go ps.worker()
	}
	return ps
}

func (ps *PackSaver) worker() {
	defer ps.wg.Done()
	for job := range ps.jobs {
		h := backend.Handle{Type: backend.PackFile, Name: job.id.String()}
		rd := backend.NewByteReader(job.data, ps.be.Hasher())
		if err := ps.be.Save(context.Background(), h, rd); err != nil {
			debug.Log("pack saver: write pack %s: %v", job.id.Str(), err)
		}
	}
}

// Save enqueues data to be written under pack ID id, blocking if the
// channel is full. It does not wait for the write to complete.
func (ps *PackSaver) Save(ctx context.Context, data []byte, id objects.ID) error {
	select {
	case ps.jobs <- packJob{data: data, id: id}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish closes the job channel and waits for every worker to drain it.
// After Finish returns, every submitted pack has either been written or
// logged as failed.
func (ps *PackSaver) Finish() {
	close(ps.jobs)
	ps.wg.Wait()
}
