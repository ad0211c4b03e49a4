package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

const DefaultBatchSize = 1000

// Stats summarizes one import run.
type Stats struct {
	Read    int
	Written int
	Skipped int
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithBatchSize sets how many puzzles are written per UpsertBatch call.
func WithBatchSize(n int) ImporterOption {
	return func(im *Importer) {
		if n > 0 {
			im.batchSize = n
		}
	}
}

// WithValidation replays every solution before writing and skips puzzles
// that do not parse.
func WithValidation(enabled bool) ImporterOption {
	return func(im *Importer) { im.validate = enabled }
}

// WithProgress registers a callback invoked after each written batch.
func WithProgress(fn func(Stats)) ImporterOption {
	return func(im *Importer) { im.progress = fn }
}

// Importer streams puzzles from a Reader into a Writer in batches.
type Importer struct {
	writer    puzzle.Writer
	batchSize int
	validate  bool
	progress  func(Stats)
}

func NewImporter(w puzzle.Writer, opts ...ImporterOption) *Importer {
	im := &Importer{writer: w, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import reads until io.EOF. A malformed record aborts the run; puzzles
// rejected by validation are counted as skipped.
func (im *Importer) Import(ctx context.Context, r *Reader) (Stats, error) {
	if im.writer == nil {
		return Stats{}, errors.New("dataset: importer has no writer")
	}
	log := logger.FromContext(ctx)
	var stats Stats
	batches := make(chan []*puzzle.Puzzle, 2)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		batch := make([]*puzzle.Puzzle, 0, im.batchSize)
		for {
			p, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			stats.Read++
			if im.validate {
				if verr := p.Validate(); verr != nil {
					stats.Skipped++
					log.Warn("Skipping invalid puzzle", "id", p.ID, "line", r.Line(), "error", verr)
					continue
				}
			}
			batch = append(batch, p)
			if len(batch) < im.batchSize {
				continue
			}
			select {
			case batches <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
			batch = make([]*puzzle.Puzzle, 0, im.batchSize)
		}
		if len(batch) == 0 {
			return nil
		}
		select {
		case batches <- batch:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	written := 0
	g.Go(func() error {
		for batch := range batches {
			if err := im.writer.UpsertBatch(gctx, batch); err != nil {
				return fmt.Errorf("dataset: writing batch at puzzle %s: %w", batch[0].ID, err)
			}
			written += len(batch)
			log.Debug("Imported batch", "size", len(batch), "total", written)
			if im.progress != nil {
				im.progress(Stats{Written: written})
			}
		}
		return nil
	})

	err := g.Wait()
	stats.Written = written
	if err != nil {
		return stats, err
	}
	log.Info("Import finished", "read", stats.Read, "written", stats.Written, "skipped", stats.Skipped)
	return stats, nil
}
