package coachingapi

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Amund211/batchroom/internal/domain"
	"github.com/google/uuid"
)

const recentNotesLimit = 20

type mockBatch struct {
	batch   batchWire
	members []memberWire
	notes   []noteWire
	notices []noticeWire
}

// Mock is an in-memory coaching API used in development and tests
type Mock struct {
	mu      sync.Mutex
	batches map[string]map[string]*mockBatch
	// Create responses by idempotency key
	created map[string]json.RawMessage
	nowFunc func() time.Time
	idFunc  func() string
}

func NewMock(nowFunc func() time.Time) *Mock {
	return &Mock{
		batches: make(map[string]map[string]*mockBatch),
		created: make(map[string]json.RawMessage),
		nowFunc: nowFunc,
		idFunc:  uuid.NewString,
	}
}

// WithIDFunc makes the mock assign ids to created resources using idFunc
func (m *Mock) WithIDFunc(idFunc func() string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.idFunc = idFunc
	return m
}

func marshal(value any) (json.RawMessage, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mock response: %w", err)
	}
	return data, nil
}

// replay returns the response to an earlier create made with the same idempotency key
func (m *Mock) replay(ctx context.Context) (json.RawMessage, bool) {
	key, ok := domain.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, false
	}
	data, ok := m.created[key]
	return data, ok
}

func (m *Mock) respondCreated(ctx context.Context, value any) (json.RawMessage, error) {
	data, err := marshal(value)
	if err != nil {
		return nil, err
	}
	if key, ok := domain.IdempotencyKeyFromContext(ctx); ok {
		m.created[key] = data
	}
	return data, nil
}

func (m *Mock) getBatch(coachingID, batchID string) (*mockBatch, error) {
	batch, ok := m.batches[coachingID][batchID]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	return batch, nil
}

func (m *Mock) ListBatches(ctx context.Context, coachingID string, status domain.BatchStatus) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batches := []batchWire{}
	for _, batch := range m.batches[coachingID] {
		if status != domain.BatchStatusAll && batch.batch.Status != string(status) {
			continue
		}
		batches = append(batches, batch.batch)
	}
	slices.SortFunc(batches, func(a, b batchWire) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return marshal(batches)
}

func (m *Mock) GetBatch(ctx context.Context, coachingID, batchID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return nil, err
	}
	return marshal(batch.batch)
}

func (m *Mock) CreateBatch(ctx context.Context, coachingID string, in domain.BatchInput) (json.RawMessage, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if data, ok := m.replay(ctx); ok {
		return data, nil
	}

	input := batchInputToWire(in)
	batch := batchWire{
		ID:          m.idFunc(),
		CoachingID:  coachingID,
		Name:        input.Name,
		Subject:     input.Subject,
		Description: input.Description,
		Status:      input.Status,
		StartsAt:    input.StartsAt,
		Capacity:    input.Capacity,
		CreatedAt:   m.nowFunc(),
	}

	if m.batches[coachingID] == nil {
		m.batches[coachingID] = make(map[string]*mockBatch)
	}
	m.batches[coachingID][batch.ID] = &mockBatch{
		batch:   batch,
		members: []memberWire{},
		notes:   []noteWire{},
		notices: []noticeWire{},
	}

	return m.respondCreated(ctx, batch)
}

func (m *Mock) UpdateBatch(ctx context.Context, coachingID, batchID string, in domain.BatchInput) (json.RawMessage, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return nil, err
	}

	input := batchInputToWire(in)
	batch.batch.Name = input.Name
	batch.batch.Subject = input.Subject
	batch.batch.Description = input.Description
	batch.batch.Status = input.Status
	batch.batch.StartsAt = input.StartsAt
	batch.batch.Capacity = input.Capacity

	return marshal(batch.batch)
}

func (m *Mock) DeleteBatch(ctx context.Context, coachingID, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.getBatch(coachingID, batchID); err != nil {
		return err
	}
	delete(m.batches[coachingID], batchID)
	return nil
}

func (m *Mock) ListMembers(ctx context.Context, coachingID, batchID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return nil, err
	}
	return marshal(batch.members)
}

func (m *Mock) AddMembers(ctx context.Context, coachingID, batchID string, userIDs []string) (json.RawMessage, error) {
	if err := domain.ValidateMemberIDs(userIDs); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return nil, err
	}

	for _, userID := range userIDs {
		if slices.ContainsFunc(batch.members, func(member memberWire) bool { return member.UserID == userID }) {
			continue
		}
		if batch.batch.Capacity > 0 && len(batch.members) >= batch.batch.Capacity {
			return nil, fmt.Errorf("%w: batch %s is full", domain.ErrInvalidInput, batchID)
		}
		batch.members = append(batch.members, memberWire{
			UserID:   userID,
			Name:     userID,
			Role:     string(domain.MemberRoleStudent),
			JoinedAt: m.nowFunc(),
		})
	}
	batch.batch.MemberCount = len(batch.members)

	return marshal(batch.members)
}

// SetMembers replaces the member list of a batch without going through the API
func (m *Mock) SetMembers(coachingID, batchID string, members []domain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return err
	}

	batch.members = make([]memberWire, 0, len(members))
	for _, member := range members {
		batch.members = append(batch.members, memberWire{
			UserID:   member.UserID,
			Name:     member.Name,
			Role:     string(member.Role),
			JoinedAt: member.JoinedAt,
		})
	}
	batch.batch.MemberCount = len(batch.members)
	return nil
}

func (m *Mock) RemoveMember(ctx context.Context, coachingID, batchID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return err
	}

	index := slices.IndexFunc(batch.members, func(member memberWire) bool { return member.UserID == userID })
	if index == -1 {
		return fmt.Errorf("%w: member %s", domain.ErrNotFound, userID)
	}
	batch.members = slices.Delete(batch.members, index, index+1)
	batch.batch.MemberCount = len(batch.members)
	return nil
}

func (m *Mock) ListNotes(ctx context.Context, coachingID, batchID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return nil, err
	}
	return marshal(batch.notes)
}

func (m *Mock) ListRecentNotes(ctx context.Context, coachingID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	notes := []noteWire{}
	for _, batch := range m.batches[coachingID] {
		notes = append(notes, batch.notes...)
	}
	slices.SortFunc(notes, func(a, b noteWire) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if len(notes) > recentNotesLimit {
		notes = notes[:recentNotesLimit]
	}

	return marshal(notes)
}

func (m *Mock) CreateNote(ctx context.Context, coachingID, batchID string, in domain.NoteInput) (json.RawMessage, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return nil, err
	}

	if data, ok := m.replay(ctx); ok {
		return data, nil
	}

	input := noteInputToWire(in)
	note := noteWire{
		ID:          m.idFunc(),
		BatchID:     batchID,
		Title:       input.Title,
		Body:        input.Body,
		AuthorID:    "mock-author",
		Attachments: input.Attachments,
		CreatedAt:   m.nowFunc(),
	}
	batch.notes = append(batch.notes, note)

	return m.respondCreated(ctx, note)
}

func (m *Mock) DeleteNote(ctx context.Context, coachingID, batchID, noteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return err
	}

	index := slices.IndexFunc(batch.notes, func(note noteWire) bool { return note.ID == noteID })
	if index == -1 {
		return fmt.Errorf("%w: note %s", domain.ErrNotFound, noteID)
	}
	batch.notes = slices.Delete(batch.notes, index, index+1)
	return nil
}

func (m *Mock) ListNotices(ctx context.Context, coachingID, batchID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return nil, err
	}
	return marshal(batch.notices)
}

func (m *Mock) CreateNotice(ctx context.Context, coachingID, batchID string, in domain.NoticeInput) (json.RawMessage, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return nil, err
	}

	if data, ok := m.replay(ctx); ok {
		return data, nil
	}

	input := noticeInputToWire(in)
	notice := noticeWire{
		ID:        m.idFunc(),
		BatchID:   batchID,
		Title:     input.Title,
		Body:      input.Body,
		Priority:  input.Priority,
		CreatedAt: m.nowFunc(),
	}
	batch.notices = append(batch.notices, notice)

	return m.respondCreated(ctx, notice)
}

func (m *Mock) DeleteNotice(ctx context.Context, coachingID, batchID, noticeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.getBatch(coachingID, batchID)
	if err != nil {
		return err
	}

	index := slices.IndexFunc(batch.notices, func(notice noticeWire) bool { return notice.ID == noticeID })
	if index == -1 {
		return fmt.Errorf("%w: notice %s", domain.ErrNotFound, noticeID)
	}
	batch.notices = slices.Delete(batch.notices, index, index+1)
	return nil
}
