package coachingapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Amund211/batchroom/internal/domain"
)

// Wire format of the coaching API. Values stored in the cache are in this format, so
// changes here must stay compatible with what is already stored (or fail to decode,
// which the cache treats as a miss).

type batchWire struct {
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

type batchInputWire struct {
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	StartsAt    time.Time `json:"startsAt"`
	Capacity    int       `json:"capacity"`
}

type memberWire struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type addMembersWire struct {
	UserIDs []string `json:"userIds"`
}

type attachmentWire struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

type noteWire struct {
	ID          string           `json:"id"`
	BatchID     string           `json:"batchId"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	AuthorID    string           `json:"authorId"`
	Attachments []attachmentWire `json:"attachments"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type noteInputWire struct {
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	Attachments []attachmentWire `json:"attachments"`
}

type noticeWire struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batchId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
}

type noticeInputWire struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
}

func (b batchWire) toDomain() (domain.Batch, error) {
	if b.ID == "" {
		return domain.Batch{}, fmt.Errorf("batch is missing id")
	}
	status, err := domain.ParseBatchStatus(b.Status)
	if err != nil || status == domain.BatchStatusAll {
		return domain.Batch{}, fmt.Errorf("batch %s has invalid status '%s'", b.ID, b.Status)
	}
	return domain.Batch{
		ID:          b.ID,
		CoachingID:  b.CoachingID,
		Name:        b.Name,
		Subject:     b.Subject,
		Description: b.Description,
		Status:      status,
		StartsAt:    b.StartsAt,
		Capacity:    b.Capacity,
		MemberCount: b.MemberCount,
		CreatedAt:   b.CreatedAt,
	}, nil
}

func (m memberWire) toDomain() (domain.Member, error) {
	if m.UserID == "" {
		return domain.Member{}, fmt.Errorf("member is missing user id")
	}
	role := domain.MemberRole(m.Role)
	switch role {
	case domain.MemberRoleStudent, domain.MemberRoleTeacher:
	default:
		return domain.Member{}, fmt.Errorf("member %s has invalid role '%s'", m.UserID, m.Role)
	}
	return domain.Member{
		UserID:   m.UserID,
		Name:     m.Name,
		Role:     role,
		JoinedAt: m.JoinedAt,
	}, nil
}

func (n noteWire) toDomain() (domain.Note, error) {
	if n.ID == "" {
		return domain.Note{}, fmt.Errorf("note is missing id")
	}
	attachments := make([]domain.Attachment, 0, len(n.Attachments))
	for _, a := range n.Attachments {
		attachments = append(attachments, domain.Attachment{
			Name:      a.Name,
			URL:       a.URL,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
		})
	}
	return domain.Note{
		ID:          n.ID,
		BatchID:     n.BatchID,
		Title:       n.Title,
		Body:        n.Body,
		AuthorID:    n.AuthorID,
		Attachments: attachments,
		CreatedAt:   n.CreatedAt,
	}, nil
}

func (n noticeWire) toDomain() (domain.Notice, error) {
	if n.ID == "" {
		return domain.Notice{}, fmt.Errorf("notice is missing id")
	}
	priority := domain.NoticePriority(n.Priority)
	switch priority {
	case domain.NoticePriorityNormal, domain.NoticePriorityImportant:
	default:
		return domain.Notice{}, fmt.Errorf("notice %s has invalid priority '%s'", n.ID, n.Priority)
	}
	return domain.Notice{
		ID:        n.ID,
		BatchID:   n.BatchID,
		Title:     n.Title,
		Body:      n.Body,
		Priority:  priority,
		CreatedAt: n.CreatedAt,
	}, nil
}

func decodeOne[W any, D any](raw json.RawMessage, kind string, toDomain func(W) (D, error)) (D, error) {
	var empty D
	var wire W
	if err := json.Unmarshal(raw, &wire); err != nil {
		return empty, fmt.Errorf("failed to unmarshal %s: %w", kind, err)
	}
	value, err := toDomain(wire)
	if err != nil {
		return empty, fmt.Errorf("invalid %s: %w", kind, err)
	}
	return value, nil
}

func decodeList[W any, D any](raw json.RawMessage, kind string, toDomain func(W) (D, error)) ([]D, error) {
	var wires []W
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s list: %w", kind, err)
	}
	if wires == nil {
		return nil, fmt.Errorf("%s list is null", kind)
	}
	values := make([]D, 0, len(wires))
	for i, wire := range wires {
		value, err := toDomain(wire)
		if err != nil {
			return nil, fmt.Errorf("invalid %s at index %d: %w", kind, i, err)
		}
		values = append(values, value)
	}
	return values, nil
}

func DecodeBatch(raw json.RawMessage) (domain.Batch, error) {
	return decodeOne(raw, "batch", batchWire.toDomain)
}

func DecodeBatches(raw json.RawMessage) ([]domain.Batch, error) {
	return decodeList(raw, "batch", batchWire.toDomain)
}

func DecodeMembers(raw json.RawMessage) ([]domain.Member, error) {
	return decodeList(raw, "member", memberWire.toDomain)
}

func DecodeNote(raw json.RawMessage) (domain.Note, error) {
	return decodeOne(raw, "note", noteWire.toDomain)
}

func DecodeNotes(raw json.RawMessage) ([]domain.Note, error) {
	return decodeList(raw, "note", noteWire.toDomain)
}

func DecodeNotice(raw json.RawMessage) (domain.Notice, error) {
	return decodeOne(raw, "notice", noticeWire.toDomain)
}

func DecodeNotices(raw json.RawMessage) ([]domain.Notice, error) {
	return decodeList(raw, "notice", noticeWire.toDomain)
}

func batchInputToWire(in domain.BatchInput) batchInputWire {
	return batchInputWire{
		Name:        in.Name,
		Subject:     in.Subject,
		Description: in.Description,
		Status:      string(in.Status),
		StartsAt:    in.StartsAt,
		Capacity:    in.Capacity,
	}
}

func attachmentsToWire(attachments []domain.Attachment) []attachmentWire {
	wires := make([]attachmentWire, 0, len(attachments))
	for _, a := range attachments {
		wires = append(wires, attachmentWire{
			Name:      a.Name,
			URL:       a.URL,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
		})
	}
	return wires
}

func noteInputToWire(in domain.NoteInput) noteInputWire {
	return noteInputWire{
		Title:       in.Title,
		Body:        in.Body,
		Attachments: attachmentsToWire(in.Attachments),
	}
}

func noticeInputToWire(in domain.NoticeInput) noticeInputWire {
	return noticeInputWire{
		Title:    in.Title,
		Body:     in.Body,
		Priority: string(in.Priority),
	}
}
