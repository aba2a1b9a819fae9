package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/North-Shore-AI/tinkex/future"
)

// SubmitFunc submits one chunk and returns its future handle.
type SubmitFunc func(ctx context.Context, chunk []Item) (future.Handle, error)

// CombinerConfig configures chunking and poll concurrency.
type CombinerConfig struct {
	// MaxChunkItems bounds the item count per chunk.
	// Default: 128
	MaxChunkItems int

	// MaxChunkSize bounds the aggregate item size per chunk.
	// Default: 250000
	MaxChunkSize int

	// MaxConcurrentPolls bounds how many chunk futures are polled at once.
	// Default: 8
	MaxConcurrentPolls int64

	// PollTimeout bounds each chunk's poll loop. Zero polls until terminal.
	PollTimeout time.Duration

	// OnQueueState observes backpressure transitions across all chunks.
	OnQueueState func(future.QueueState)
}

// Combined is the merged result of a chunked batch operation.
type Combined struct {
	Metrics map[string]float64
	Outputs []map[string]any
	Count   int
}

// Combiner splits, submits, polls, and merges chunked batch operations.
type Combiner struct {
	poller *future.Poller
	cfg    CombinerConfig
}

// NewCombiner creates a Combiner polling through p.
func NewCombiner(p *future.Poller, cfg CombinerConfig) *Combiner {
	if cfg.MaxChunkItems <= 0 {
		cfg.MaxChunkItems = 128
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 250000
	}
	if cfg.MaxConcurrentPolls <= 0 {
		cfg.MaxConcurrentPolls = 8
	}
	return &Combiner{poller: p, cfg: cfg}
}

// SubmitAndCombine runs one logical batch operation: split items into
// chunks, submit them strictly in order, poll all futures concurrently,
// and merge the partial results. Any submission failure aborts the whole
// operation before polling starts; any poll failure fails the operation
// with the first error while remaining polls are cancelled. Empty input
// yields an empty result without any submission.
func (c *Combiner) SubmitAndCombine(ctx context.Context, items []Item, submit SubmitFunc) (*Combined, error) {
	if len(items) == 0 {
		return &Combined{Metrics: make(map[string]float64)}, nil
	}

	chunks := Split(items, c.cfg.MaxChunkItems, c.cfg.MaxChunkSize)

	// Submission is sequential so server-side sequence numbers stay
	// monotonic across chunks.
	handles := make([]future.Handle, len(chunks))
	for i, chunk := range chunks {
		h, err := submit(ctx, chunk)
		if err != nil {
			return nil, err
		}
		handles[i] = h
	}

	results := make([]ChunkResult, len(chunks))
	sem := semaphore.NewWeighted(c.cfg.MaxConcurrentPolls)
	g, gctx := errgroup.WithContext(ctx)
	for i := range chunks {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			body, err := c.poller.Poll(gctx, handles[i], future.PollOptions{
				Timeout:      c.cfg.PollTimeout,
				OnQueueState: c.cfg.OnQueueState,
			})
			if err != nil {
				return err
			}
			results[i] = ParseChunkResult(body, len(chunks[i]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := &Combined{
		Metrics: Reduce(results),
		Count:   len(items),
	}
	for _, r := range results {
		combined.Outputs = append(combined.Outputs, r.Outputs...)
	}
	return combined, nil
}
