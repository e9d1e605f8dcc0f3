package engine

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wkalt/strata/cache"
	"github.com/wkalt/strata/objects"
	"github.com/wkalt/strata/util/log"
)

// uploadTask is one sealed block awaiting migration. done is non-nil for
// synchronous flushes.
type uploadTask struct {
	block *cache.Block
	done  chan error
}

// uploadLoop migrates sealed blocks to object storage one at a time, in the
// order they were sealed.
func (e *Engine) uploadLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case task := <-e.uploads:
			e.ledger.add(task.block.ID(), task.block.MaxWALOffset())
			err := e.processUpload(ctx, task.block)
			if task.done != nil {
				task.done <- err
			}
		case <-e.done:
			return
		}
	}
}

// processUpload runs the three migration stages for one block, and on
// success trims the log behind the committed prefix and frees the block. On
// failure the block stays cached and the log keeps its data.
func (e *Engine) processUpload(ctx context.Context, block *cache.Block) error {
	start := time.Now()
	if err := e.uploadBlock(ctx, block); err != nil {
		log.Errorf(ctx, "failed to migrate %s: %s", block, err)
		return err
	}
	if floor := e.ledger.commit(block.ID()); floor > 0 {
		if err := e.wal.Trim(ctx, floor); err != nil {
			log.Warnf(ctx, "failed to trim log to %d: %s", floor, err)
		}
	}
	blockID := block.ID()
	// scheduled from a fresh goroutine so a full task queue cannot stall the
	// migration loop
	go e.schedule(func() { e.cache.Free(blockID) })
	log.Infof(ctx, "Migrated %s in %s", block, time.Since(start))
	return nil
}

// uploadBlock runs prepare, upload, commit. Each stage completes fully
// before the next starts, and the object becomes visible to readers only at
// commit.
func (e *Engine) uploadBlock(ctx context.Context, block *cache.Block) error {
	prepared, err := e.manager.Prepare(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare object: %w", err)
	}
	body, ranges := assembleObject(block)
	if err := e.store.Put(ctx, prepared.Key, bytes.NewReader(body), int64(len(body))); err != nil {
		return fmt.Errorf("failed to upload object %s: %w", prepared.Key, err)
	}
	if err := e.manager.Commit(ctx, objects.CommitRequest{
		Prepared: prepared,
		Size:     int64(len(body)),
		Ranges:   ranges,
	}); err != nil {
		return fmt.Errorf("failed to commit object %s: %w", prepared.Key, err)
	}
	return nil
}

// assembleObject lays a block out as a single storage object: each stream's
// batches back to back in offset order, streams in ascending ID order, with
// one range per contiguous run.
func assembleObject(block *cache.Block) ([]byte, []objects.StreamRange) {
	body := make([]byte, 0, block.Size())
	ranges := []objects.StreamRange{}
	for _, streamID := range block.Streams() {
		batches := block.Batches(streamID)
		run := 0
		for i := 1; i <= len(batches); i++ {
			if i < len(batches) && batches[i].BaseOffset == batches[i-1].EndOffset() {
				continue
			}
			position := len(body)
			for _, batch := range batches[run:i] {
				body = append(body, batch.Data...)
			}
			ranges = append(ranges, objects.StreamRange{
				StreamID:    streamID,
				StartOffset: batches[run].BaseOffset,
				EndOffset:   batches[i-1].EndOffset(),
				Position:    position,
				Length:      len(body) - position,
			})
			run = i
		}
	}
	return body, ranges
}
