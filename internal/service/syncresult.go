package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"storesync-api/internal/cache"
	"storesync-api/internal/model"
)

const (
	// syncResultKeyPrefix namespaces sync run records in the cache.
	syncResultKeyPrefix = "sync_result:"

	// maxStoredErrors bounds the per-run error list so one broken catalog
	// cannot blow up the cache value.
	maxStoredErrors = 100
)

// SyncResultStore is the shared progress record for a sync run: written by
// worker jobs as chunks finish, read by the status polling endpoint. All
// writes go through the cache's atomic Update, and a record that has reached
// its terminal state is never written again (terminal-write-once).
type SyncResultStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewSyncResultStore creates the store. ttl bounds how long a sync id stays
// pollable after its last write.
func NewSyncResultStore(c cache.Cache, ttl time.Duration) *SyncResultStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SyncResultStore{cache: c, ttl: ttl}
}

func (s *SyncResultStore) key(syncID string) string {
	return syncResultKeyPrefix + syncID
}

// Get returns the stored result, or (nil, nil) for an unknown/expired sync id.
func (s *SyncResultStore) Get(ctx context.Context, syncID string) (*model.SyncResult, error) {
	data, err := s.cache.Get(ctx, s.key(syncID))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sync result %s: %w", syncID, err)
	}

	var result model.SyncResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse sync result %s: %w", syncID, err)
	}
	return &result, nil
}

// InitProgress writes the initial in-progress record for a run. totalChunks
// is the counted barrier: the terminal completed write only happens once that
// many chunk results have been recorded.
func (s *SyncResultStore) InitProgress(ctx context.Context, syncID string, licenseID int64, operation string, totalChunks int) error {
	result := model.SyncResult{
		SyncID:          syncID,
		LicenseID:       licenseID,
		Operation:       operation,
		ChunksTotal:     totalChunks,
		ChunksRemaining: totalChunks,
		StartedAt:       time.Now().UTC(),
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal sync result %s: %w", syncID, err)
	}
	return s.cache.Set(ctx, s.key(syncID), data, s.ttl)
}

// SetChunksTotal re-bases the chunk counter once the fetch stage knows the
// real chunk count (full-catalog runs start with an unknown total).
func (s *SyncResultStore) SetChunksTotal(ctx context.Context, syncID string, totalChunks int) error {
	_, err := s.update(ctx, syncID, func(r *model.SyncResult) {
		r.ChunksTotal = totalChunks
		r.ChunksRemaining = totalChunks
	})
	return err
}

// RecordChunk folds one chunk's outcome into the run and decrements the
// chunks-remaining counter. When the counter reaches zero this call performs
// the terminal completed write and returns completed=true; chunks finishing
// out of order are safe because only the count matters.
func (s *SyncResultStore) RecordChunk(ctx context.Context, syncID string, successCount, errorCount int, itemErrors []model.ItemError) (bool, error) {
	result, err := s.update(ctx, syncID, func(r *model.SyncResult) {
		r.TotalProcessed += successCount + errorCount
		r.SuccessCount += successCount
		r.ErrorCount += errorCount
		for _, e := range itemErrors {
			if len(r.Errors) >= maxStoredErrors {
				break
			}
			r.Errors = append(r.Errors, e)
		}

		if r.ChunksRemaining > 0 {
			r.ChunksRemaining--
		}
		if r.ChunksRemaining == 0 {
			now := time.Now().UTC()
			ok := r.ErrorCount == 0
			r.Success = &ok
			r.CompletedAt = &now
		}
	})
	if err != nil {
		return false, err
	}
	return result != nil && result.CompletedAt != nil, nil
}

// Fail performs the terminal failed write for a run that cannot continue.
func (s *SyncResultStore) Fail(ctx context.Context, syncID, message string) error {
	_, err := s.update(ctx, syncID, func(r *model.SyncResult) {
		now := time.Now().UTC()
		ok := false
		r.Success = &ok
		r.FailedAt = &now
		r.Message = message
	})
	return err
}

// update applies fn to the stored record under the cache's atomic Update.
// A missing record (expired or never initialized) and an already-terminal
// record both skip the write; the terminal check is what enforces
// at-most-one terminal transition even when a retried job races the original.
func (s *SyncResultStore) update(ctx context.Context, syncID string, fn func(*model.SyncResult)) (*model.SyncResult, error) {
	var result *model.SyncResult

	_, err := s.cache.Update(ctx, s.key(syncID), s.ttl, func(old []byte) ([]byte, error) {
		if old == nil {
			log.Printf("[SyncResultStore] No record for sync %s, skipping write", syncID)
			return nil, cache.ErrSkipUpdate
		}

		var r model.SyncResult
		if err := json.Unmarshal(old, &r); err != nil {
			return nil, fmt.Errorf("failed to parse sync result %s: %w", syncID, err)
		}
		if r.Terminal() {
			log.Printf("[SyncResultStore] Sync %s already terminal, skipping write", syncID)
			result = &r
			return nil, cache.ErrSkipUpdate
		}

		fn(&r)
		result = &r
		return json.Marshal(&r)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update sync result %s: %w", syncID, err)
	}
	return result, nil
}
