package archiver

import (
	"context"
	"time"

	"github.com/jLantxa/mapache-sub000/internal/debug"
	"github.com/jLantxa/mapache-sub000/internal/repository"
)

// IndexUploader periodically persists the repository's pending index
// metadata during a long-running backup, so that progress survives even if
// the run is interrupted before any packer reaches its flush threshold.
type IndexUploader struct {
	Repo *repository.Repository

	// Start is called before an index save attempt.
	Start func()

	// Complete is called after a successful index save.
	Complete func()
}

// Upload saves pending indexes on a timer until shutdown is cancelled, at
// which point it performs one last save before returning.
func (u IndexUploader) Upload(ctx, shutdown context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	save := func() error {
		if u.Start != nil {
			u.Start()
		}
		if err := u.Repo.Index().Save(ctx, u.Repo.Backend(), u.Repo.Key()); err != nil {
			debug.Log("save indexes returned an error: %v", err)
			return err
		}
		if u.Complete != nil {
			u.Complete()
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-shutdown.Done():
			return save()
		case <-ticker.C:
			if err := save(); err != nil {
				return err
			}
		}
	}
}
