package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Attachment struct {
	Name      string
	URL       string
	MimeType  string
	SizeBytes int64
}

type Note struct {
	ID          string
	BatchID     string
	Title       string
	Body        string
	AuthorID    string
	Attachments []Attachment
	CreatedAt   time.Time
}

type NoteInput struct {
	Title       string
	Body        string
	Attachments []Attachment
}

const maxNoteTitleLength = 200

func (in NoteInput) Validate() error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("%w: note title is required", ErrInvalidInput)
	}
	if len(title) > maxNoteTitleLength {
		return fmt.Errorf("%w: note title is longer than %d characters", ErrInvalidInput, maxNoteTitleLength)
	}
	if strings.TrimSpace(in.Body) == "" && len(in.Attachments) == 0 {
		return fmt.Errorf("%w: note needs a body or at least one attachment", ErrInvalidInput)
	}

	for _, attachment := range in.Attachments {
		if err := attachment.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a Attachment) validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: attachment name is required", ErrInvalidInput)
	}
	parsed, err := url.Parse(a.URL)
	if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("%w: attachment %q must have an https url", ErrInvalidInput, a.Name)
	}
	if a.SizeBytes < 0 {
		return fmt.Errorf("%w: attachment %q has a negative size", ErrInvalidInput, a.Name)
	}
	return nil
}
