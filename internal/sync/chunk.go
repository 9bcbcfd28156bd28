package sync

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ChunkCodes splits codes into ordered slices of at most size elements.
// The last chunk may be shorter; concatenating the chunks in order reproduces
// the input. size must be positive.
func ChunkCodes(codes []string, size int) ([][]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", size)
	}

	chunks := make([][]string, 0, (len(codes)+size-1)/size)
	for start := 0; start < len(codes); start += size {
		end := start + size
		if end > len(codes) {
			end = len(codes)
		}
		chunks = append(chunks, codes[start:end])
	}
	return chunks, nil
}

// ChunkDelay computes the dispatch delay for chunk i (0-based). Delays grow
// strictly with the index so load on the downstream APIs ramps instead of
// bursting.
func ChunkDelay(i int, base, perChunk time.Duration) time.Duration {
	return base + time.Duration(i)*perChunk
}

// DispatchFunc schedules one chunk's job after the given delay.
type DispatchFunc func(ctx context.Context, codes []string, chunkIndex, totalChunks int, delay time.Duration) error

// DispatchChunks schedules one job per chunk, index order, increasing delay.
// Scheduling is best-effort: a failed enqueue is logged and the remaining
// chunks are still scheduled. Returns how many chunks were scheduled.
func DispatchChunks(ctx context.Context, chunks [][]string, base, perChunk time.Duration, dispatch DispatchFunc) int {
	scheduled := 0
	for i, chunk := range chunks {
		delay := ChunkDelay(i, base, perChunk)
		if err := dispatch(ctx, chunk, i+1, len(chunks), delay); err != nil {
			log.Printf("[ChunkDispatch] Failed to schedule chunk %d/%d: %v", i+1, len(chunks), err)
			continue
		}
		scheduled++
	}
	return scheduled
}
