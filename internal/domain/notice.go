package domain

import (
	"fmt"
	"strings"
	"time"
)

type NoticePriority string

const (
	NoticePriorityNormal    NoticePriority = "normal"
	NoticePriorityImportant NoticePriority = "important"
)

type Notice struct {
	ID        string
	BatchID   string
	Title     string
	Body      string
	Priority  NoticePriority
	CreatedAt time.Time
}

type NoticeInput struct {
	Title    string
	Body     string
	Priority NoticePriority
}

func (in NoticeInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: notice title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Body) == "" {
		return fmt.Errorf("%w: notice body is required", ErrInvalidInput)
	}
	switch in.Priority {
	case NoticePriorityNormal, NoticePriorityImportant:
	default:
		return fmt.Errorf("%w: unknown notice priority %q", ErrInvalidInput, in.Priority)
	}
	return nil
}
