package ports

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Amund211/batchroom/internal/domain"
)

const maxRequestBodyBytes = 1 << 20

type batchRequest struct {
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	StartsAt    time.Time `json:"startsAt"`
	Capacity    int       `json:"capacity"`
}

type addMembersRequest struct {
	UserIDs []string `json:"userIds"`
}

type attachmentRequest struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

type noteRequest struct {
	Title       string              `json:"title"`
	Body        string              `json:"body"`
	Attachments []attachmentRequest `json:"attachments"`
}

type noticeRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
}

// decodeRequestBody parses the json body into target. Every failure is an ErrInvalidInput.
func decodeRequestBody(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("%w: request body is larger than %d bytes", domain.ErrInvalidInput, maxBytesErr.Limit)
		}
		return fmt.Errorf("%w: failed to parse request body: %w", domain.ErrInvalidInput, err)
	}
	if decoder.More() {
		return fmt.Errorf("%w: request body has trailing data", domain.ErrInvalidInput)
	}
	return nil
}

func (b batchRequest) toInput() (domain.BatchInput, error) {
	status, err := domain.ParseBatchStatus(b.Status)
	if err != nil {
		return domain.BatchInput{}, err
	}
	return domain.BatchInput{
		Name:        b.Name,
		Subject:     b.Subject,
		Description: b.Description,
		Status:      status,
		StartsAt:    b.StartsAt,
		Capacity:    b.Capacity,
	}, nil
}

func (n noteRequest) toInput() domain.NoteInput {
	attachments := make([]domain.Attachment, 0, len(n.Attachments))
	for _, a := range n.Attachments {
		attachments = append(attachments, domain.Attachment{
			Name:      a.Name,
			URL:       a.URL,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
		})
	}
	return domain.NoteInput{
		Title:       n.Title,
		Body:        n.Body,
		Attachments: attachments,
	}
}

func (n noticeRequest) toInput() domain.NoticeInput {
	return domain.NoticeInput{
		Title:    n.Title,
		Body:     n.Body,
		Priority: domain.NoticePriority(n.Priority),
	}
}
