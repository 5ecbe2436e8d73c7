package checker

import (
	"context"
	"testing"

	"github.com/jLantxa/mapache-sub000/internal/repository"
)

// TestCheckRepo runs every check the checker implements against repo,
// failing t on the first error encountered.
func TestCheckRepo(t testing.TB, repo *repository.Repository) {
	chkr := New(repo, true)

	hints, errs := chkr.LoadIndex(context.Background())
	if len(errs) != 0 {
		t.Fatalf("errors loading index: %v", errs)
	}
	if len(hints) != 0 {
		t.Fatalf("hints loading index: %v", hints)
	}

	if err := chkr.LoadSnapshots(context.Background()); err != nil {
		t.Error(err)
	}

	errChan := make(chan error)
	go chkr.Packs(context.Background(), errChan)
	for err := range errChan {
		t.Error(err)
	}

	errChan = make(chan error)
	go chkr.Structure(context.Background(), nil, errChan)
	for err := range errChan {
		t.Error(err)
	}

	blobs := chkr.UnusedBlobs()
	if len(blobs) > 0 {
		t.Errorf("unused blobs found: %v", blobs)
	}

	errChan = make(chan error)
	go chkr.ReadPacks(context.Background(), chkr.GetPacks(), nil, errChan)
	for err := range errChan {
		t.Error(err)
	}
}
