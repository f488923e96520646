package app

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/Amund211/batchroom/internal/adapters/coachingapi"
	"github.com/Amund211/batchroom/internal/domain"
)

func (s *BatchService) WatchBatches(ctx context.Context, coachingID string, status domain.BatchStatus) iter.Seq2[[]domain.Batch, error] {
	key, err := batchListKey(coachingID, status)
	return watch(ctx, s, key, err, func(ctx context.Context) (json.RawMessage, error) {
		return s.api.ListBatches(ctx, coachingID, status)
	}, coachingapi.DecodeBatches)
}

func (s *BatchService) WatchBatch(ctx context.Context, coachingID, batchID string) iter.Seq2[domain.Batch, error] {
	key, err := batchKey(coachingID, batchID)
	return watch(ctx, s, key, err, func(ctx context.Context) (json.RawMessage, error) {
		return s.api.GetBatch(ctx, coachingID, batchID)
	}, coachingapi.DecodeBatch)
}

func (s *BatchService) CreateBatch(ctx context.Context, coachingID string, in domain.BatchInput) (domain.Batch, error) {
	if err := validateID("coaching", coachingID); err != nil {
		return domain.Batch{}, err
	}
	if err := in.Validate(); err != nil {
		return domain.Batch{}, err
	}

	raw, err := s.api.CreateBatch(ctx, coachingID, in)
	if err != nil {
		// NOTE: coachingAPI implementations handle their own error reporting
		return domain.Batch{}, fmt.Errorf("could not create batch: %w", err)
	}

	return s.storeBatch(ctx, coachingID, raw)
}

func (s *BatchService) UpdateBatch(ctx context.Context, coachingID, batchID string, in domain.BatchInput) (domain.Batch, error) {
	if _, err := batchKey(coachingID, batchID); err != nil {
		return domain.Batch{}, err
	}
	if err := in.Validate(); err != nil {
		return domain.Batch{}, err
	}

	raw, err := s.api.UpdateBatch(ctx, coachingID, batchID, in)
	if err != nil {
		// NOTE: coachingAPI implementations handle their own error reporting
		return domain.Batch{}, fmt.Errorf("could not update batch: %w", err)
	}

	return s.storeBatch(ctx, coachingID, raw)
}

func (s *BatchService) DeleteBatch(ctx context.Context, coachingID, batchID string) error {
	if _, err := batchKey(coachingID, batchID); err != nil {
		return err
	}

	if err := s.api.DeleteBatch(ctx, coachingID, batchID); err != nil {
		// NOTE: coachingAPI implementations handle their own error reporting
		return fmt.Errorf("could not delete batch: %w", err)
	}

	s.invalidate(ctx, familyCoaching, coachingID, "")
	return nil
}

// storeBatch invalidates the batch family of the coaching and seeds the detail key of the
// written batch
func (s *BatchService) storeBatch(ctx context.Context, coachingID string, raw json.RawMessage) (domain.Batch, error) {
	s.invalidate(ctx, familyCoaching, coachingID, "")

	batch, err := coachingapi.DecodeBatch(raw)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("could not decode written batch: %w", err)
	}

	key, err := batchKey(coachingID, batch.ID)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("coaching API returned unusable batch id: %w", err)
	}
	s.seed(ctx, key, raw)

	return batch, nil
}
