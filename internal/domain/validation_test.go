package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/Amund211/batchroom/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestParseBatchStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw    string
		status domain.BatchStatus
		valid  bool
	}{
		{raw: "", status: domain.BatchStatusAll, valid: true},
		{raw: "active", status: domain.BatchStatusActive, valid: true},
		{raw: " Upcoming ", status: domain.BatchStatusUpcoming, valid: true},
		{raw: "COMPLETED", status: domain.BatchStatusCompleted, valid: true},
		{raw: "archived", status: domain.BatchStatusArchived, valid: true},
		{raw: "paused", valid: false},
		{raw: "active:1", valid: false},
	}

	for _, c := range cases {
		t.Run(c.raw, func(t *testing.T) {
			t.Parallel()

			status, err := domain.ParseBatchStatus(c.raw)
			if !c.valid {
				require.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.status, status)
		})
	}
}

func TestBatchInputValidate(t *testing.T) {
	t.Parallel()

	valid := domain.BatchInput{
		Name:     "Math-10",
		Subject:  "Mathematics",
		Status:   domain.BatchStatusActive,
		StartsAt: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		Capacity: 30,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(in domain.BatchInput) domain.BatchInput
	}{
		{
			name: "empty name",
			mutate: func(in domain.BatchInput) domain.BatchInput {
				in.Name = "   "
				return in
			},
		},
		{
			name: "long name",
			mutate: func(in domain.BatchInput) domain.BatchInput {
				in.Name = strings.Repeat("a", 101)
				return in
			},
		},
		{
			name: "missing status",
			mutate: func(in domain.BatchInput) domain.BatchInput {
				in.Status = domain.BatchStatusAll
				return in
			},
		},
		{
			name: "unknown status",
			mutate: func(in domain.BatchInput) domain.BatchInput {
				in.Status = "paused"
				return in
			},
		},
		{
			name: "negative capacity",
			mutate: func(in domain.BatchInput) domain.BatchInput {
				in.Capacity = -1
				return in
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, c.mutate(valid).Validate(), domain.ErrInvalidInput)
		})
	}
}

func TestValidateMemberIDs(t *testing.T) {
	t.Parallel()

	require.NoError(t, domain.ValidateMemberIDs([]string{"u1", "u2"}))
	require.ErrorIs(t, domain.ValidateMemberIDs(nil), domain.ErrInvalidInput)
	require.ErrorIs(t, domain.ValidateMemberIDs([]string{"u1", ""}), domain.ErrInvalidInput)
	require.ErrorIs(t, domain.ValidateMemberIDs([]string{"u1", "u1"}), domain.ErrInvalidInput)

	tooMany := make([]string, 201)
	for i := range tooMany {
		tooMany[i] = strings.Repeat("u", i+1)
	}
	require.ErrorIs(t, domain.ValidateMemberIDs(tooMany), domain.ErrInvalidInput)
}

func TestNoteInputValidate(t *testing.T) {
	t.Parallel()

	attachment := domain.Attachment{
		Name:      "chapter-1.pdf",
		URL:       "https://files.example.com/chapter-1.pdf",
		MimeType:  "application/pdf",
		SizeBytes: 1024,
	}

	require.NoError(t, domain.NoteInput{Title: "Chapter 1", Body: "Read it"}.Validate())
	require.NoError(t, domain.NoteInput{Title: "Chapter 1", Attachments: []domain.Attachment{attachment}}.Validate())

	require.ErrorIs(t, domain.NoteInput{Body: "no title"}.Validate(), domain.ErrInvalidInput)
	require.ErrorIs(t, domain.NoteInput{Title: "empty"}.Validate(), domain.ErrInvalidInput)
	require.ErrorIs(t, domain.NoteInput{Title: strings.Repeat("t", 201), Body: "x"}.Validate(), domain.ErrInvalidInput)

	insecure := attachment
	insecure.URL = "http://files.example.com/chapter-1.pdf"
	require.ErrorIs(t, domain.NoteInput{Title: "Chapter 1", Attachments: []domain.Attachment{insecure}}.Validate(), domain.ErrInvalidInput)

	unnamed := attachment
	unnamed.Name = ""
	require.ErrorIs(t, domain.NoteInput{Title: "Chapter 1", Attachments: []domain.Attachment{unnamed}}.Validate(), domain.ErrInvalidInput)
}

func TestNoticeInputValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, domain.NoticeInput{Title: "Holiday", Body: "No class on friday", Priority: domain.NoticePriorityImportant}.Validate())
	require.ErrorIs(t, domain.NoticeInput{Body: "x", Priority: domain.NoticePriorityNormal}.Validate(), domain.ErrInvalidInput)
	require.ErrorIs(t, domain.NoticeInput{Title: "x", Priority: domain.NoticePriorityNormal}.Validate(), domain.ErrInvalidInput)
	require.ErrorIs(t, domain.NoticeInput{Title: "x", Body: "y", Priority: "urgent"}.Validate(), domain.ErrInvalidInput)
}
