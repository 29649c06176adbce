package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPairingIntent(t *testing.T) {
	ix := NewSiblingIndex([]SiblingGroup{
		{ID: "g1", Rule: RuleSeparate, MemberIDs: []string{"p01", "p02"}},
		{ID: "g2", Rule: RuleTogether, MemberIDs: []string{"p03", "p04", "p05"}},
		// p01 and p02 also share a TOGETHER group; SEPARATE must win.
		{ID: "g3", Rule: RuleTogether, MemberIDs: []string{"p01", "p02"}},
	})

	require.Equal(t, IntentSeparateForbidden, ix.PairingIntent("p01", "p02"))
	require.Equal(t, IntentSeparateForbidden, ix.PairingIntent("p02", "p01"))
	require.Equal(t, IntentTogetherPreferred, ix.PairingIntent("p03", "p05"))
	require.Equal(t, IntentNeutral, ix.PairingIntent("p01", "p03"))
	require.Equal(t, IntentNeutral, ix.PairingIntent("p01", "p01"))
}

func TestSiblingsOf(t *testing.T) {
	ix := NewSiblingIndex([]SiblingGroup{
		{ID: "g1", Rule: RuleSeparate, MemberIDs: []string{"p05", "p01"}},
		{ID: "g2", Rule: RuleTogether, MemberIDs: []string{"p01", "p03"}},
	})

	require.Equal(t, []string{"p03", "p05"}, ix.SiblingsOf("p01"))
	require.Empty(t, ix.SiblingsOf("p09"))
}

func TestSeparateConflictAndTogetherBonus(t *testing.T) {
	ix := NewSiblingIndex([]SiblingGroup{
		{ID: "g1", Rule: RuleSeparate, MemberIDs: []string{"p01", "p02"}},
		{ID: "g2", Rule: RuleTogether, MemberIDs: []string{"p03", "p04"}},
		{ID: "g3", Rule: RuleTogether, MemberIDs: []string{"p01", "p02"}},
	})

	onDate := map[string]bool{"p02": true, "p04": true}

	require.True(t, ix.HasSeparateConflict("p01", onDate))
	require.False(t, ix.HasSeparateConflict("p03", onDate))
	require.True(t, ix.HasTogetherBonus("p03", onDate))
	// The pair is both SEPARATE and TOGETHER: no bonus, separation rules.
	require.False(t, ix.HasTogetherBonus("p01", onDate))
	require.False(t, ix.HasTogetherBonus("p05", onDate))
}
