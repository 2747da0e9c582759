// Package batch splits ordered work into bounded-size chunks and drives
// a caller-supplied batch function across them with retry, inter-batch
// delay, and partial-failure accounting.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sietch-labs/hydrator-go/pkg/retry"
)

// ProcessFunc handles one batch of items and returns the batch output.
// The context carries the per-batch timeout.
type ProcessFunc func(ctx context.Context, items []string) (interface{}, error)

// ProgressFunc is invoked before each batch with the 1-based batch
// number and the total batch count.
type ProgressFunc func(batchNumber, totalBatches int)

// Processor drives batched processing according to a Config.
type Processor struct {
	config Config
	logger *logrus.Logger
}

// NewProcessor creates a Processor. The config must validate; the logger
// must not be nil.
func NewProcessor(config Config, logger *logrus.Logger) (*Processor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Processor{
		config: config,
		logger: logger,
	}, nil
}

// Config returns the processor's configuration.
func (p *Processor) Config() Config {
	return p.config
}

// Process partitions items into consecutive chunks of the configured
// batch size (the last chunk may be shorter) and calls fn for each chunk
// in order, wrapped by the retry policy. A failing batch is recorded and
// never aborts the remaining batches. The returned Result is valid even
// when the error is non-nil (early termination through ctx).
func (p *Processor) Process(ctx context.Context, items []string, fn ProcessFunc, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	result := &Result{}

	chunks := chunkItems(items, p.config.BatchSize)
	if len(chunks) == 0 {
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	p.logger.WithFields(logrus.Fields{
		"strategy":      p.config.Strategy,
		"total_items":   len(items),
		"total_batches": len(chunks),
		"batch_size":    p.config.BatchSize,
	}).Info("Starting batch processing")

	var err error
	if p.config.MaxConcurrentBatches > 1 {
		err = p.processConcurrent(ctx, chunks, fn, progress, result)
	} else {
		err = p.processSequential(ctx, chunks, fn, progress, result)
	}

	result.ProcessingTime = time.Since(start)

	p.logger.WithFields(logrus.Fields{
		"success_count":   result.SuccessCount,
		"error_count":     result.ErrorCount,
		"total_processed": result.TotalProcessed,
		"success_rate":    result.SuccessRate(),
		"processing_time": result.ProcessingTime.String(),
	}).Info("Batch processing complete")

	return result, err
}

func (p *Processor) processSequential(ctx context.Context, chunks [][]string, fn ProcessFunc, progress ProgressFunc, result *Result) error {
	policy := p.retryPolicy()

	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if progress != nil {
			progress(i+1, len(chunks))
		}

		output, err := p.runBatch(ctx, policy, chunk, fn)
		if err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"batch_number": i + 1,
				"batch_size":   len(chunk),
			}).Error("Batch failed after retries")
			result.Errors = append(result.Errors, BatchError{
				BatchIndex: i,
				ItemCount:  len(chunk),
				Err:        err,
			})
			result.ErrorCount += len(chunk)
		} else {
			result.Results = append(result.Results, output)
			result.SuccessCount += len(chunk)
		}
		result.TotalProcessed += len(chunk)

		// Rate-limit headroom between batches, skipped after the last.
		if i < len(chunks)-1 && p.config.DelayBetweenBatches > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.DelayBetweenBatches):
			}
		}
	}

	return nil
}

// processConcurrent runs up to MaxConcurrentBatches chunks at a time.
// Output order stays deterministic: successful outputs are collected by
// chunk index and compacted afterwards.
func (p *Processor) processConcurrent(ctx context.Context, chunks [][]string, fn ProcessFunc, progress ProgressFunc, result *Result) error {
	policy := p.retryPolicy()

	outputs := make([]interface{}, len(chunks))
	succeeded := make([]bool, len(chunks))
	batchErrs := make([]*BatchError, len(chunks))

	sem := make(chan struct{}, p.config.MaxConcurrentBatches)
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			wg.Wait()
			p.collectConcurrent(chunks, outputs, succeeded, batchErrs, result)
			return ctx.Err()
		case sem <- struct{}{}:
		}

		if progress != nil {
			progress(i+1, len(chunks))
		}

		wg.Add(1)
		go func(idx int, chunk []string) {
			defer wg.Done()
			defer func() { <-sem }()

			output, err := p.runBatch(ctx, policy, chunk, fn)
			if err != nil {
				batchErrs[idx] = &BatchError{
					BatchIndex: idx,
					ItemCount:  len(chunk),
					Err:        err,
				}
				return
			}
			outputs[idx] = output
			succeeded[idx] = true
		}(i, chunk)

		if i < len(chunks)-1 && p.config.DelayBetweenBatches > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.config.DelayBetweenBatches):
			}
		}
	}

	wg.Wait()
	p.collectConcurrent(chunks, outputs, succeeded, batchErrs, result)
	return nil
}

func (p *Processor) collectConcurrent(chunks [][]string, outputs []interface{}, succeeded []bool, batchErrs []*BatchError, result *Result) {
	for i := range chunks {
		if succeeded[i] {
			result.Results = append(result.Results, outputs[i])
			result.SuccessCount += len(chunks[i])
			result.TotalProcessed += len(chunks[i])
		} else if batchErrs[i] != nil {
			result.Errors = append(result.Errors, *batchErrs[i])
			result.ErrorCount += len(chunks[i])
			result.TotalProcessed += len(chunks[i])
		}
	}
}

// runBatch executes fn for one chunk under the per-batch timeout,
// wrapped by the retry policy.
func (p *Processor) runBatch(ctx context.Context, policy retry.Policy, chunk []string, fn ProcessFunc) (interface{}, error) {
	var output interface{}
	err := retry.Do(ctx, policy, p.logger, func() error {
		batchCtx := ctx
		if p.config.TimeoutPerBatch > 0 {
			var cancel context.CancelFunc
			batchCtx, cancel = context.WithTimeout(ctx, p.config.TimeoutPerBatch)
			defer cancel()
		}
		out, err := fn(batchCtx, chunk)
		if err != nil {
			return err
		}
		output = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return output, nil
}

func (p *Processor) retryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = p.config.MaxRetries
	return policy
}

// chunkItems splits items into consecutive, non-overlapping chunks of
// the given size, preserving order. The last chunk may be shorter.
func chunkItems(items []string, size int) [][]string {
	if len(items) == 0 || size <= 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
