package archiver

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	"github.com/restic/chunker"
)

// saveFile reads path, splits it with content-defined chunking using pol,
// and saves every chunk as a data blob, returning the ordered blob list.
// Files smaller than chunker.MinSize are saved as a single blob without
// invoking the chunker at all, per the fixed CDC parameters.
func (a *Archiver) saveFile(ctx context.Context, pool *bufferPool, path string, size uint64) (objects.IDs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer f.Close()

	if size < chunker.MinSize {
		buf, err := io.ReadAll(f)
		if err != nil {
			return nil, errors.Wrap(err, "read")
		}
		id, _, _, err := a.repo.SaveBlob(ctx, objects.DataBlob, buf, objects.ID{}, false)
		if err != nil {
			return nil, err
		}
		return objects.IDs{id}, nil
	}

	chnk := chunker.New(f, a.pol)

	var (
		ids objects.IDs
		wg  sync.WaitGroup
		mu  sync.Mutex
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		buf := pool.Get()
		chunk, err := chnk.Next(buf.Data[:cap(buf.Data)])
		if err == io.EOF {
			buf.Release()
			break
		}
		if err != nil {
			buf.Release()
			return nil, errors.Wrap(err, "chunk")
		}
		buf.Data = chunk.Data

		idx := len(ids)
		ids = append(ids, objects.ID{})

		wg.Add(1)
		a.saver.Save(ctx, objects.DataBlob, buf, path, func(res saveBlobResponse) {
			defer wg.Done()
			mu.Lock()
			ids[idx] = res.id
			mu.Unlock()
		})
	}

	wg.Wait()
	return ids, nil
}
