package coachingapi_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/Amund211/batchroom/internal/adapters/coachingapi"
	"github.com/Amund211/batchroom/internal/domain"
	"github.com/stretchr/testify/require"
)

func newMock() *coachingapi.Mock {
	now := time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC)
	nowFunc := func() time.Time {
		now = now.Add(time.Minute)
		return now
	}

	id := 0
	idFunc := func() string {
		id++
		return fmt.Sprintf("id%d", id)
	}

	return coachingapi.NewMock(nowFunc).WithIDFunc(idFunc)
}

func mathBatch(status domain.BatchStatus) domain.BatchInput {
	return domain.BatchInput{
		Name:     "Math-10",
		Subject:  "Mathematics",
		Status:   status,
		StartsAt: time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC),
		Capacity: 2,
	}
}

func TestMock(t *testing.T) {
	t.Parallel()

	t.Run("batches", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		mock := newMock()

		raw, err := mock.CreateBatch(ctx, "c1", mathBatch(domain.BatchStatusActive))
		require.NoError(t, err)
		created, err := coachingapi.DecodeBatch(raw)
		require.NoError(t, err)
		require.Equal(t, "id1", created.ID)
		require.Equal(t, "c1", created.CoachingID)

		_, err = mock.CreateBatch(ctx, "c1", mathBatch(domain.BatchStatusUpcoming))
		require.NoError(t, err)

		raw, err = mock.ListBatches(ctx, "c1", domain.BatchStatusAll)
		require.NoError(t, err)
		batches, err := coachingapi.DecodeBatches(raw)
		require.NoError(t, err)
		require.Len(t, batches, 2)
		require.Equal(t, "id1", batches[0].ID)

		raw, err = mock.ListBatches(ctx, "c1", domain.BatchStatusUpcoming)
		require.NoError(t, err)
		batches, err = coachingapi.DecodeBatches(raw)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		require.Equal(t, "id2", batches[0].ID)

		raw, err = mock.ListBatches(ctx, "other", domain.BatchStatusAll)
		require.NoError(t, err)
		require.JSONEq(t, `[]`, string(raw))

		update := mathBatch(domain.BatchStatusCompleted)
		update.Name = "Math-11"
		raw, err = mock.UpdateBatch(ctx, "c1", "id1", update)
		require.NoError(t, err)
		updated, err := coachingapi.DecodeBatch(raw)
		require.NoError(t, err)
		require.Equal(t, "Math-11", updated.Name)
		require.Equal(t, domain.BatchStatusCompleted, updated.Status)
		require.Equal(t, created.CreatedAt, updated.CreatedAt)

		require.NoError(t, mock.DeleteBatch(ctx, "c1", "id1"))
		_, err = mock.GetBatch(ctx, "c1", "id1")
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.ErrorIs(t, mock.DeleteBatch(ctx, "c1", "id1"), domain.ErrNotFound)
	})

	t.Run("creates with the same idempotency key are applied once", func(t *testing.T) {
		t.Parallel()
		mock := newMock()

		ctx := domain.WithIdempotencyKey(t.Context(), "create-batch-1")
		first, err := mock.CreateBatch(ctx, "c1", mathBatch(domain.BatchStatusActive))
		require.NoError(t, err)
		retried, err := mock.CreateBatch(ctx, "c1", mathBatch(domain.BatchStatusActive))
		require.NoError(t, err)
		require.JSONEq(t, string(first), string(retried))

		_, err = mock.CreateBatch(t.Context(), "c1", mathBatch(domain.BatchStatusActive))
		require.NoError(t, err)

		raw, err := mock.ListBatches(t.Context(), "c1", domain.BatchStatusAll)
		require.NoError(t, err)
		batches, err := coachingapi.DecodeBatches(raw)
		require.NoError(t, err)
		require.Len(t, batches, 2)

		noteCtx := domain.WithIdempotencyKey(t.Context(), "create-note-1")
		for range 2 {
			_, err := mock.CreateNote(noteCtx, "c1", "id1", domain.NoteInput{Title: "Homework", Body: "Page 4"})
			require.NoError(t, err)
		}
		raw, err = mock.ListNotes(t.Context(), "c1", "id1")
		require.NoError(t, err)
		notes, err := coachingapi.DecodeNotes(raw)
		require.NoError(t, err)
		require.Len(t, notes, 1)
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		mock := newMock()

		_, err := mock.CreateBatch(ctx, "c1", domain.BatchInput{Status: domain.BatchStatusActive})
		require.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = mock.UpdateBatch(ctx, "c1", "missing", mathBatch(domain.BatchStatusActive))
		require.ErrorIs(t, err, domain.ErrNotFound)

		_, err = mock.CreateNote(ctx, "c1", "missing", domain.NoteInput{Title: "t", Body: "b"})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("members", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		mock := newMock()

		_, err := mock.CreateBatch(ctx, "c1", mathBatch(domain.BatchStatusActive))
		require.NoError(t, err)

		raw, err := mock.AddMembers(ctx, "c1", "id1", []string{"u1"})
		require.NoError(t, err)
		members, err := coachingapi.DecodeMembers(raw)
		require.NoError(t, err)
		require.Len(t, members, 1)

		// Adding an existing member is a no-op
		_, err = mock.AddMembers(ctx, "c1", "id1", []string{"u1", "u2"})
		require.NoError(t, err)

		_, err = mock.AddMembers(ctx, "c1", "id1", []string{"u3"})
		require.ErrorIs(t, err, domain.ErrInvalidInput)

		raw, err = mock.GetBatch(ctx, "c1", "id1")
		require.NoError(t, err)
		batch, err := coachingapi.DecodeBatch(raw)
		require.NoError(t, err)
		require.Equal(t, 2, batch.MemberCount)

		require.NoError(t, mock.RemoveMember(ctx, "c1", "id1", "u1"))
		require.ErrorIs(t, mock.RemoveMember(ctx, "c1", "id1", "u1"), domain.ErrNotFound)

		require.NoError(t, mock.SetMembers("c1", "id1", []domain.Member{
			{UserID: "t1", Name: "Teacher", Role: domain.MemberRoleTeacher},
		}))
		raw, err = mock.ListMembers(ctx, "c1", "id1")
		require.NoError(t, err)
		members, err = coachingapi.DecodeMembers(raw)
		require.NoError(t, err)
		require.Len(t, members, 1)
		require.Equal(t, domain.MemberRoleTeacher, members[0].Role)
	})

	t.Run("notes and recent notes", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		mock := newMock()

		_, err := mock.CreateBatch(ctx, "c1", mathBatch(domain.BatchStatusActive))
		require.NoError(t, err)
		_, err = mock.CreateBatch(ctx, "c1", mathBatch(domain.BatchStatusActive))
		require.NoError(t, err)

		_, err = mock.CreateNote(ctx, "c1", "id1", domain.NoteInput{Title: "first", Body: "b"})
		require.NoError(t, err)
		_, err = mock.CreateNote(ctx, "c1", "id2", domain.NoteInput{Title: "second", Body: "b"})
		require.NoError(t, err)

		raw, err := mock.ListNotes(ctx, "c1", "id1")
		require.NoError(t, err)
		notes, err := coachingapi.DecodeNotes(raw)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		require.Equal(t, "first", notes[0].Title)

		raw, err = mock.ListRecentNotes(ctx, "c1")
		require.NoError(t, err)
		notes, err = coachingapi.DecodeNotes(raw)
		require.NoError(t, err)
		require.Len(t, notes, 2)
		require.Equal(t, "second", notes[0].Title)

		require.NoError(t, mock.DeleteNote(ctx, "c1", "id2", "id4"))
		require.ErrorIs(t, mock.DeleteNote(ctx, "c1", "id2", "id4"), domain.ErrNotFound)
	})

	t.Run("notices", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		mock := newMock()

		_, err := mock.CreateBatch(ctx, "c1", mathBatch(domain.BatchStatusActive))
		require.NoError(t, err)

		raw, err := mock.CreateNotice(ctx, "c1", "id1", domain.NoticeInput{Title: "Holiday", Body: "No class", Priority: domain.NoticePriorityNormal})
		require.NoError(t, err)
		notice, err := coachingapi.DecodeNotice(raw)
		require.NoError(t, err)
		require.Equal(t, "id2", notice.ID)

		_, err = mock.CreateNotice(ctx, "c1", "id1", domain.NoticeInput{Title: "Holiday", Body: "No class", Priority: "urgent"})
		require.ErrorIs(t, err, domain.ErrInvalidInput)

		require.NoError(t, mock.DeleteNotice(ctx, "c1", "id1", "id2"))
		raw, err = mock.ListNotices(ctx, "c1", "id1")
		require.NoError(t, err)
		require.JSONEq(t, `[]`, string(raw))
	})
}
