package coachingapi_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Amund211/batchroom/internal/adapters/coachingapi"
	"github.com/Amund211/batchroom/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestDecodeBatch(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		batch, err := coachingapi.DecodeBatch(json.RawMessage(`{
			"id": "b1",
			"coachingId": "c1",
			"name": "Math-10",
			"subject": "Mathematics",
			"status": "active",
			"startsAt": "2026-06-01T09:00:00Z",
			"capacity": 30,
			"memberCount": 2,
			"createdAt": "2026-05-01T12:00:00Z"
		}`))
		require.NoError(t, err)
		require.Equal(t, domain.Batch{
			ID:          "b1",
			CoachingID:  "c1",
			Name:        "Math-10",
			Subject:     "Mathematics",
			Status:      domain.BatchStatusActive,
			StartsAt:    time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC),
			Capacity:    30,
			MemberCount: 2,
			CreatedAt:   time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC),
		}, batch)
	})

	for name, raw := range map[string]string{
		"not json":       `{`,
		"missing id":     `{"status":"active"}`,
		"unknown status": `{"id":"b1","status":"paused"}`,
		"missing status": `{"id":"b1"}`,
		"wrong type":     `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := coachingapi.DecodeBatch(json.RawMessage(raw))
			require.Error(t, err)
		})
	}
}

func TestDecodeLists(t *testing.T) {
	t.Parallel()

	t.Run("batches", func(t *testing.T) {
		t.Parallel()

		batches, err := coachingapi.DecodeBatches(json.RawMessage(`[{"id":"b1","status":"active"},{"id":"b2","status":"archived"}]`))
		require.NoError(t, err)
		require.Len(t, batches, 2)
		require.Equal(t, domain.BatchStatusArchived, batches[1].Status)

		batches, err = coachingapi.DecodeBatches(json.RawMessage(`[]`))
		require.NoError(t, err)
		require.Empty(t, batches)

		_, err = coachingapi.DecodeBatches(json.RawMessage(`null`))
		require.Error(t, err)

		_, err = coachingapi.DecodeBatches(json.RawMessage(`[{"id":"b1","status":"active"},{"status":"active"}]`))
		require.ErrorContains(t, err, "index 1")
	})

	t.Run("members", func(t *testing.T) {
		t.Parallel()

		members, err := coachingapi.DecodeMembers(json.RawMessage(`[{"userId":"u1","name":"Ada","role":"teacher","joinedAt":"2026-05-01T12:00:00Z"}]`))
		require.NoError(t, err)
		require.Equal(t, []domain.Member{{
			UserID:   "u1",
			Name:     "Ada",
			Role:     domain.MemberRoleTeacher,
			JoinedAt: time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC),
		}}, members)

		_, err = coachingapi.DecodeMembers(json.RawMessage(`[{"userId":"u1","role":"principal"}]`))
		require.Error(t, err)
	})

	t.Run("notes", func(t *testing.T) {
		t.Parallel()

		notes, err := coachingapi.DecodeNotes(json.RawMessage(`[{"id":"n1","batchId":"b1","title":"Week 1","attachments":[{"name":"a.pdf","url":"https://files.example/a.pdf","mimeType":"application/pdf","sizeBytes":1024}]}]`))
		require.NoError(t, err)
		require.Len(t, notes, 1)
		require.Equal(t, []domain.Attachment{{
			Name:      "a.pdf",
			URL:       "https://files.example/a.pdf",
			MimeType:  "application/pdf",
			SizeBytes: 1024,
		}}, notes[0].Attachments)

		note, err := coachingapi.DecodeNote(json.RawMessage(`{"id":"n1","title":"Week 1"}`))
		require.NoError(t, err)
		require.Equal(t, "n1", note.ID)
		require.Empty(t, note.Attachments)

		_, err = coachingapi.DecodeNote(json.RawMessage(`{"title":"Week 1"}`))
		require.Error(t, err)
	})

	t.Run("notices", func(t *testing.T) {
		t.Parallel()

		notices, err := coachingapi.DecodeNotices(json.RawMessage(`[{"id":"x1","title":"Holiday","body":"No class","priority":"important"}]`))
		require.NoError(t, err)
		require.Len(t, notices, 1)
		require.Equal(t, domain.NoticePriorityImportant, notices[0].Priority)

		_, err = coachingapi.DecodeNotice(json.RawMessage(`{"id":"x1","priority":"urgent"}`))
		require.Error(t, err)
	})
}
