package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"storesync-api/internal/model"
	"storesync-api/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinate(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown license rejected", func(t *testing.T) {
		p, _ := testPipeline(&fakeLicenseRepo{licenses: map[int64]*model.License{}},
			&fakeProductRepo{}, &recordingQueue{}, newFakeAdapter(), &scriptedWarehouse{})

		_, err := p.Coordinate(ctx, 99, OpUpdateAll, nil)
		assert.ErrorIs(t, err, ErrLicenseInvalid)
	})

	t.Run("inactive license schedules nothing", func(t *testing.T) {
		lic := testLicense(1)
		lic.Active = false
		q := &recordingQueue{}
		p, _ := testPipeline(&fakeLicenseRepo{licenses: map[int64]*model.License{1: lic}},
			&fakeProductRepo{}, q, newFakeAdapter(), &scriptedWarehouse{})

		_, err := p.Coordinate(ctx, 1, OpUpdateAll, nil)
		assert.ErrorIs(t, err, ErrLicenseInvalid)
		assert.Empty(t, q.jobs)
	})

	t.Run("missing credentials rejected", func(t *testing.T) {
		lic := testLicense(1)
		lic.StoreAPIKey = ""
		p, _ := testPipeline(&fakeLicenseRepo{licenses: map[int64]*model.License{1: lic}},
			&fakeProductRepo{}, &recordingQueue{}, newFakeAdapter(), &scriptedWarehouse{})

		_, err := p.Coordinate(ctx, 1, OpUpdateAll, nil)
		assert.ErrorIs(t, err, ErrLicenseInvalid)
	})

	t.Run("unreachable store aborts before fan-out", func(t *testing.T) {
		adapter := newFakeAdapter()
		adapter.pingErr = errors.New("connection refused")
		q := &recordingQueue{}
		p, _ := testPipeline(&fakeLicenseRepo{licenses: map[int64]*model.License{1: testLicense(1)}},
			&fakeProductRepo{}, q, adapter, &scriptedWarehouse{})

		_, err := p.Coordinate(ctx, 1, OpUpdateAll, nil)
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.Empty(t, q.jobs)
	})

	t.Run("unknown operation is a recognized no-op", func(t *testing.T) {
		q := &recordingQueue{}
		p, _ := testPipeline(&fakeLicenseRepo{licenses: map[int64]*model.License{1: testLicense(1)}},
			&fakeProductRepo{}, q, newFakeAdapter(), &scriptedWarehouse{})

		syncID, err := p.Coordinate(ctx, 1, "defragment", nil)
		require.NoError(t, err)
		assert.Empty(t, syncID)
		assert.Empty(t, q.jobs)
	})

	t.Run("update_specific with only blank codes is a no-op", func(t *testing.T) {
		q := &recordingQueue{}
		p, _ := testPipeline(&fakeLicenseRepo{licenses: map[int64]*model.License{1: testLicense(1)}},
			&fakeProductRepo{}, q, newFakeAdapter(), &scriptedWarehouse{})

		syncID, err := p.Coordinate(ctx, 1, OpUpdateSpecific, []string{"  ", ""})
		require.NoError(t, err)
		assert.Empty(t, syncID)
		assert.Empty(t, q.jobs)
	})

	t.Run("update_specific chunks and dispatches in order", func(t *testing.T) {
		codes := make([]string, 120)
		for i := range codes {
			codes[i] = fmt.Sprintf("SKU-%03d", i)
		}
		q := &recordingQueue{}
		p, results := testPipeline(&fakeLicenseRepo{licenses: map[int64]*model.License{1: testLicense(1)}},
			&fakeProductRepo{}, q, newFakeAdapter(), &scriptedWarehouse{})

		syncID, err := p.Coordinate(ctx, 1, OpUpdateSpecific, codes)
		require.NoError(t, err)
		require.NotEmpty(t, syncID)
		require.Len(t, q.jobs, 3)

		var prev int
		for i, job := range q.jobs {
			assert.Equal(t, queue.QueueBulkUpdate, job.Queue)
			assert.Equal(t, JobTypeBatchUpdate, job.Type)

			var payload chunkJobPayload
			require.NoError(t, json.Unmarshal(job.Payload, &payload))
			assert.Equal(t, syncID, payload.SyncID)
			assert.Equal(t, 3, payload.TotalChunks)
			assert.Equal(t, i+1, payload.ChunkIndex)
			assert.Greater(t, payload.ChunkIndex, prev)
			prev = payload.ChunkIndex

			if i < 2 {
				assert.Len(t, payload.Codes, 50)
			} else {
				assert.Len(t, payload.Codes, 20)
			}
		}

		// The run is pollable as processing with the chunk barrier armed.
		result, err := results.Get(ctx, syncID)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, model.SyncStatusProcessing, result.Status())
		assert.Equal(t, 3, result.ChunksRemaining)
	})

	t.Run("update_all enqueues a fetch job", func(t *testing.T) {
		q := &recordingQueue{}
		p, results := testPipeline(&fakeLicenseRepo{licenses: map[int64]*model.License{1: testLicense(1)}},
			&fakeProductRepo{}, q, newFakeAdapter(), &scriptedWarehouse{})

		syncID, err := p.Coordinate(ctx, 1, OpUpdateAll, nil)
		require.NoError(t, err)
		require.Len(t, q.jobs, 1)
		assert.Equal(t, queue.QueueFetch, q.jobs[0].Queue)
		assert.Equal(t, JobTypeFetchAndDivide, q.jobs[0].Type)

		var payload fetchJobPayload
		require.NoError(t, json.Unmarshal(q.jobs[0].Payload, &payload))
		assert.Equal(t, syncID, payload.SyncID)
		assert.Equal(t, int64(1), payload.Tenant.LicenseID)

		result, err := results.Get(ctx, syncID)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, model.SyncStatusProcessing, result.Status())
	})
}
