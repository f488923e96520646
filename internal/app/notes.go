package app

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/Amund211/batchroom/internal/adapters/coachingapi"
	"github.com/Amund211/batchroom/internal/domain"
)

func (s *BatchService) WatchNotes(ctx context.Context, coachingID, batchID string) iter.Seq2[[]domain.Note, error] {
	key, err := notesKey(coachingID, batchID)
	return watch(ctx, s, key, err, func(ctx context.Context) (json.RawMessage, error) {
		return s.api.ListNotes(ctx, coachingID, batchID)
	}, coachingapi.DecodeNotes)
}

// WatchRecentNotes streams the latest notes across every batch of the coaching
func (s *BatchService) WatchRecentNotes(ctx context.Context, coachingID string) iter.Seq2[[]domain.Note, error] {
	key, err := recentNotesKey(coachingID)
	return watch(ctx, s, key, err, func(ctx context.Context) (json.RawMessage, error) {
		return s.api.ListRecentNotes(ctx, coachingID)
	}, coachingapi.DecodeNotes)
}

func (s *BatchService) CreateNote(ctx context.Context, coachingID, batchID string, in domain.NoteInput) (domain.Note, error) {
	if _, err := notesKey(coachingID, batchID); err != nil {
		return domain.Note{}, err
	}
	if err := in.Validate(); err != nil {
		return domain.Note{}, err
	}

	raw, err := s.api.CreateNote(ctx, coachingID, batchID, in)
	if err != nil {
		// NOTE: coachingAPI implementations handle their own error reporting
		return domain.Note{}, fmt.Errorf("could not create note: %w", err)
	}

	s.invalidate(ctx, familyNotes, coachingID, batchID)

	note, err := coachingapi.DecodeNote(raw)
	if err != nil {
		return domain.Note{}, fmt.Errorf("could not decode created note: %w", err)
	}
	return note, nil
}

func (s *BatchService) DeleteNote(ctx context.Context, coachingID, batchID, noteID string) error {
	if _, err := notesKey(coachingID, batchID); err != nil {
		return err
	}
	if err := validateID("note", noteID); err != nil {
		return err
	}

	if err := s.api.DeleteNote(ctx, coachingID, batchID, noteID); err != nil {
		// NOTE: coachingAPI implementations handle their own error reporting
		return fmt.Errorf("could not delete note: %w", err)
	}

	s.invalidate(ctx, familyNotes, coachingID, batchID)
	return nil
}
