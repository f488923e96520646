package app

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/Amund211/batchroom/internal/adapters/coachingapi"
	"github.com/Amund211/batchroom/internal/domain"
)

func (s *BatchService) WatchNotices(ctx context.Context, coachingID, batchID string) iter.Seq2[[]domain.Notice, error] {
	key, err := noticesKey(coachingID, batchID)
	return watch(ctx, s, key, err, func(ctx context.Context) (json.RawMessage, error) {
		return s.api.ListNotices(ctx, coachingID, batchID)
	}, coachingapi.DecodeNotices)
}

func (s *BatchService) CreateNotice(ctx context.Context, coachingID, batchID string, in domain.NoticeInput) (domain.Notice, error) {
	if _, err := noticesKey(coachingID, batchID); err != nil {
		return domain.Notice{}, err
	}
	if err := in.Validate(); err != nil {
		return domain.Notice{}, err
	}

	raw, err := s.api.CreateNotice(ctx, coachingID, batchID, in)
	if err != nil {
		// NOTE: coachingAPI implementations handle their own error reporting
		return domain.Notice{}, fmt.Errorf("could not create notice: %w", err)
	}

	s.invalidate(ctx, familyNotices, coachingID, batchID)

	notice, err := coachingapi.DecodeNotice(raw)
	if err != nil {
		return domain.Notice{}, fmt.Errorf("could not decode created notice: %w", err)
	}
	return notice, nil
}

func (s *BatchService) DeleteNotice(ctx context.Context, coachingID, batchID, noticeID string) error {
	if _, err := noticesKey(coachingID, batchID); err != nil {
		return err
	}
	if err := validateID("notice", noticeID); err != nil {
		return err
	}

	if err := s.api.DeleteNotice(ctx, coachingID, batchID, noticeID); err != nil {
		// NOTE: coachingAPI implementations handle their own error reporting
		return fmt.Errorf("could not delete notice: %w", err)
	}

	s.invalidate(ctx, familyNotices, coachingID, batchID)
	return nil
}
