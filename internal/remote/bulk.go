package remote

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"lfu-go/internal/lfu"
)

// DefaultBulkConcurrency is how many objects a bulk upload transfers at once.
const DefaultBulkConcurrency = 8

// BulkRepository is a Repository that also offers the bulk transfer path:
// a whole batch is staged with bounded concurrency in one call.
type BulkRepository struct {
	*Repository
	concurrency int

	// bulkMu keeps bulk uploads one at a time.
	bulkMu sync.Mutex
}

// NewBulkRepository wraps repo with a bulk upload path transferring up to
// concurrency objects at once.
func NewBulkRepository(repo *Repository, concurrency int) *BulkRepository {
	if concurrency < 1 {
		concurrency = DefaultBulkConcurrency
	}
	return &BulkRepository{Repository: repo, concurrency: concurrency}
}

// BulkUpload stages every object of files. Objects already on the remote
// are skipped. The first failure cancels the remaining transfers.
func (b *BulkRepository) BulkUpload(ctx context.Context, files []lfu.StageRequest) error {
	b.bulkMu.Lock()
	defer b.bulkMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, f := range files {
		g.Go(func() error {
			return b.stage(gctx, f)
		})
	}
	return g.Wait()
}

var (
	_ lfu.Remote       = (*BulkRepository)(nil)
	_ lfu.BulkUploader = (*BulkRepository)(nil)
)
