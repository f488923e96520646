package app

import (
	"testing"

	"github.com/Amund211/batchroom/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestInvalidatedFamilies(t *testing.T) {
	t.Parallel()

	require.Equal(t, []keyFamily{familyNotes, familyRecentNotes}, invalidatedFamilies(familyNotes))
	require.Equal(t, []keyFamily{familyMembers}, invalidatedFamilies(familyMembers))
	require.Equal(t, []keyFamily{familyNotices}, invalidatedFamilies(familyNotices))
	require.Equal(t, []keyFamily{familyCoaching}, invalidatedFamilies(familyCoaching))
}

func TestKeyFamilyTarget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		family   keyFamily
		expected invalidationTarget
	}{
		{family: familyCoaching, expected: invalidationTarget{key: "batch:c1", prefix: true}},
		{family: familyMembers, expected: invalidationTarget{key: "batch:c1:b1:members"}},
		{family: familyNotes, expected: invalidationTarget{key: "batch:c1:b1:notes"}},
		{family: familyRecentNotes, expected: invalidationTarget{key: "batch:c1:recent-notes"}},
		{family: familyNotices, expected: invalidationTarget{key: "batch:c1:b1:notices"}},
	}

	for _, c := range cases {
		target, err := c.family.target("c1", "b1")
		require.NoError(t, err)
		require.Equal(t, c.expected, target)
	}

	_, err := keyFamily("unknown").target("c1", "b1")
	require.Error(t, err)

	_, err = familyMembers.target("c1", "list")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBatchListKey(t *testing.T) {
	t.Parallel()

	key, err := batchListKey("c1", domain.BatchStatusAll)
	require.NoError(t, err)
	require.Equal(t, "batch:c1:list:all", key)

	key, err = batchListKey("c1", domain.BatchStatusUpcoming)
	require.NoError(t, err)
	require.Equal(t, "batch:c1:list:upcoming", key)
}
