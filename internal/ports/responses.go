package ports

import (
	"time"

	"github.com/Amund211/batchroom/internal/domain"
)

type batchResponse struct {
	ID          string    `json:"id"`
	CoachingID  string    `json:"coachingId"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	StartsAt    time.Time `json:"startsAt"`
	Capacity    int       `json:"capacity"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

type memberResponse struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type attachmentResponse struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

type noteResponse struct {
	ID          string               `json:"id"`
	BatchID     string               `json:"batchId"`
	Title       string               `json:"title"`
	Body        string               `json:"body"`
	AuthorID    string               `json:"authorId"`
	Attachments []attachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"createdAt"`
}

type noticeResponse struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batchId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
}

func batchToResponse(batch domain.Batch) batchResponse {
	return batchResponse{
		ID:          batch.ID,
		CoachingID:  batch.CoachingID,
		Name:        batch.Name,
		Subject:     batch.Subject,
		Description: batch.Description,
		Status:      string(batch.Status),
		StartsAt:    batch.StartsAt,
		Capacity:    batch.Capacity,
		MemberCount: batch.MemberCount,
		CreatedAt:   batch.CreatedAt,
	}
}

func memberToResponse(member domain.Member) memberResponse {
	return memberResponse{
		UserID:   member.UserID,
		Name:     member.Name,
		Role:     string(member.Role),
		JoinedAt: member.JoinedAt,
	}
}

func noteToResponse(note domain.Note) noteResponse {
	attachments := make([]attachmentResponse, 0, len(note.Attachments))
	for _, a := range note.Attachments {
		attachments = append(attachments, attachmentResponse{
			Name:      a.Name,
			URL:       a.URL,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
		})
	}
	return noteResponse{
		ID:          note.ID,
		BatchID:     note.BatchID,
		Title:       note.Title,
		Body:        note.Body,
		AuthorID:    note.AuthorID,
		Attachments: attachments,
		CreatedAt:   note.CreatedAt,
	}
}

func noticeToResponse(notice domain.Notice) noticeResponse {
	return noticeResponse{
		ID:        notice.ID,
		BatchID:   notice.BatchID,
		Title:     notice.Title,
		Body:      notice.Body,
		Priority:  string(notice.Priority),
		CreatedAt: notice.CreatedAt,
	}
}

func listToResponse[D any, R any](values []D, convert func(D) R) []R {
	responses := make([]R, 0, len(values))
	for _, value := range values {
		responses = append(responses, convert(value))
	}
	return responses
}
