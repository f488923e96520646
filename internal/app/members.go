package app

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/Amund211/batchroom/internal/adapters/coachingapi"
	"github.com/Amund211/batchroom/internal/domain"
)

func (s *BatchService) WatchMembers(ctx context.Context, coachingID, batchID string) iter.Seq2[[]domain.Member, error] {
	key, err := membersKey(coachingID, batchID)
	return watch(ctx, s, key, err, func(ctx context.Context) (json.RawMessage, error) {
		return s.api.ListMembers(ctx, coachingID, batchID)
	}, coachingapi.DecodeMembers)
}

func (s *BatchService) AddMembers(ctx context.Context, coachingID, batchID string, userIDs []string) ([]domain.Member, error) {
	if _, err := membersKey(coachingID, batchID); err != nil {
		return nil, err
	}
	if err := domain.ValidateMemberIDs(userIDs); err != nil {
		return nil, err
	}

	raw, err := s.api.AddMembers(ctx, coachingID, batchID, userIDs)
	if err != nil {
		// NOTE: coachingAPI implementations handle their own error reporting
		return nil, fmt.Errorf("could not add members: %w", err)
	}

	s.invalidate(ctx, familyMembers, coachingID, batchID)

	members, err := coachingapi.DecodeMembers(raw)
	if err != nil {
		return nil, fmt.Errorf("could not decode members: %w", err)
	}
	return members, nil
}

func (s *BatchService) RemoveMember(ctx context.Context, coachingID, batchID, userID string) error {
	if _, err := membersKey(coachingID, batchID); err != nil {
		return err
	}
	if err := validateID("user", userID); err != nil {
		return err
	}

	if err := s.api.RemoveMember(ctx, coachingID, batchID, userID); err != nil {
		// NOTE: coachingAPI implementations handle their own error reporting
		return fmt.Errorf("could not remove member: %w", err)
	}

	s.invalidate(ctx, familyMembers, coachingID, batchID)
	return nil
}
