package app

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Amund211/batchroom/internal/adapters/cache"
	"github.com/Amund211/batchroom/internal/domain"
)

const batchKeyDomain = "batch"

// Batch ids that would collide with the other key families under a coaching
var reservedBatchIDs = []string{"list", "recent-notes"}

type keyFamily string

const (
	// Every key under the coaching: batch lists, batch details and their sub resources
	familyCoaching    keyFamily = "coaching"
	familyMembers     keyFamily = "members"
	familyNotes       keyFamily = "notes"
	familyRecentNotes keyFamily = "recent-notes"
	familyNotices     keyFamily = "notices"
)

// Families that hold views derived from the data of another family.
// Invalidating a family invalidates its dependents as well.
var dependentFamilies = map[keyFamily][]keyFamily{
	familyNotes: {familyRecentNotes},
}

// invalidatedFamilies returns the family followed by everything that depends on it
func invalidatedFamilies(family keyFamily) []keyFamily {
	families := []keyFamily{family}
	for i := 0; i < len(families); i++ {
		for _, dependent := range dependentFamilies[families[i]] {
			if !slices.Contains(families, dependent) {
				families = append(families, dependent)
			}
		}
	}
	return families
}

type invalidationTarget struct {
	key    string
	prefix bool
}

func (f keyFamily) target(coachingID, batchID string) (invalidationTarget, error) {
	switch f {
	case familyCoaching:
		key, err := coachingKey(coachingID)
		return invalidationTarget{key: key, prefix: true}, err
	case familyMembers:
		key, err := membersKey(coachingID, batchID)
		return invalidationTarget{key: key}, err
	case familyNotes:
		key, err := notesKey(coachingID, batchID)
		return invalidationTarget{key: key}, err
	case familyRecentNotes:
		key, err := recentNotesKey(coachingID)
		return invalidationTarget{key: key}, err
	case familyNotices:
		key, err := noticesKey(coachingID, batchID)
		return invalidationTarget{key: key}, err
	default:
		return invalidationTarget{}, fmt.Errorf("unknown key family '%s'", f)
	}
}

func validateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", domain.ErrInvalidInput, kind)
	}
	if strings.Contains(id, cache.KeySeparator) {
		return fmt.Errorf("%w: %s id must not contain '%s'", domain.ErrInvalidInput, kind, cache.KeySeparator)
	}
	return nil
}

func validateBatchID(batchID string) error {
	if err := validateID("batch", batchID); err != nil {
		return err
	}
	if slices.Contains(reservedBatchIDs, batchID) {
		return fmt.Errorf("%w: batch id '%s' is reserved", domain.ErrInvalidInput, batchID)
	}
	return nil
}

func coachingKey(coachingID string) (string, error) {
	if err := validateID("coaching", coachingID); err != nil {
		return "", err
	}
	return cache.JoinKey(batchKeyDomain, coachingID)
}

func batchListKey(coachingID string, status domain.BatchStatus) (string, error) {
	if err := validateID("coaching", coachingID); err != nil {
		return "", err
	}
	qualifier := string(status)
	if status == domain.BatchStatusAll {
		qualifier = "all"
	}
	return cache.JoinKey(batchKeyDomain, coachingID, "list", qualifier)
}

func batchKey(coachingID, batchID string, rest ...string) (string, error) {
	if err := validateID("coaching", coachingID); err != nil {
		return "", err
	}
	if err := validateBatchID(batchID); err != nil {
		return "", err
	}
	return cache.JoinKey(append([]string{batchKeyDomain, coachingID, batchID}, rest...)...)
}

func membersKey(coachingID, batchID string) (string, error) {
	return batchKey(coachingID, batchID, "members")
}

func notesKey(coachingID, batchID string) (string, error) {
	return batchKey(coachingID, batchID, "notes")
}

func noticesKey(coachingID, batchID string) (string, error) {
	return batchKey(coachingID, batchID, "notices")
}

func recentNotesKey(coachingID string) (string, error) {
	if err := validateID("coaching", coachingID); err != nil {
		return "", err
	}
	return cache.JoinKey(batchKeyDomain, coachingID, "recent-notes")
}
