package domain

import (
	"fmt"
	"time"
)

type MemberRole string

const (
	MemberRoleStudent MemberRole = "student"
	MemberRoleTeacher MemberRole = "teacher"
)

type Member struct {
	UserID   string
	Name     string
	Role     MemberRole
	JoinedAt time.Time
}

const maxMembersPerRequest = 200

func ValidateMemberIDs(userIDs []string) error {
	if len(userIDs) == 0 {
		return fmt.Errorf("%w: no members given", ErrInvalidInput)
	}
	if len(userIDs) > maxMembersPerRequest {
		return fmt.Errorf("%w: at most %d members can be added at once", ErrInvalidInput, maxMembersPerRequest)
	}

	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if userID == "" {
			return fmt.Errorf("%w: empty member id", ErrInvalidInput)
		}
		if _, ok := seen[userID]; ok {
			return fmt.Errorf("%w: duplicate member id %q", ErrInvalidInput, userID)
		}
		seen[userID] = struct{}{}
	}
	return nil
}
