package domain

import (
	"fmt"
	"strings"
	"time"
)

type BatchStatus string

const (
	BatchStatusActive    BatchStatus = "active"
	BatchStatusUpcoming  BatchStatus = "upcoming"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusArchived  BatchStatus = "archived"
)

// BatchStatusAll is not a status a batch can have, only a filter when listing
const BatchStatusAll BatchStatus = ""

func ParseBatchStatus(raw string) (BatchStatus, error) {
	switch status := BatchStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case BatchStatusAll, BatchStatusActive, BatchStatusUpcoming, BatchStatusCompleted, BatchStatusArchived:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown batch status %q", ErrInvalidInput, raw)
	}
}

type Batch struct {
	ID          string
	CoachingID  string
	Name        string
	Subject     string
	Description string
	Status      BatchStatus
	StartsAt    time.Time
	Capacity    int
	MemberCount int
	CreatedAt   time.Time
}

type BatchInput struct {
	Name        string
	Subject     string
	Description string
	Status      BatchStatus
	StartsAt    time.Time
	Capacity    int
}

const maxBatchNameLength = 100

func (in BatchInput) Validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: batch name is required", ErrInvalidInput)
	}
	if len(name) > maxBatchNameLength {
		return fmt.Errorf("%w: batch name is longer than %d characters", ErrInvalidInput, maxBatchNameLength)
	}
	if in.Status == BatchStatusAll {
		return fmt.Errorf("%w: batch status is required", ErrInvalidInput)
	}
	if _, err := ParseBatchStatus(string(in.Status)); err != nil {
		return err
	}
	if in.Capacity < 0 {
		return fmt.Errorf("%w: batch capacity must not be negative", ErrInvalidInput)
	}
	return nil
}
