package scheduler

import "sort"

// SiblingIndex resolves pairing rules between roster members. SEPARATE wins
// over TOGETHER when a pair shares groups with both rules.
type SiblingIndex struct {
	separate map[string]map[string]bool
	together map[string]map[string]bool
}

// NewSiblingIndex builds the pair lookup from the group definitions.
func NewSiblingIndex(groups []SiblingGroup) *SiblingIndex {
	ix := &SiblingIndex{
		separate: make(map[string]map[string]bool),
		together: make(map[string]map[string]bool),
	}
	for _, g := range groups {
		target := ix.together
		if g.Rule == RuleSeparate {
			target = ix.separate
		}
		for _, a := range g.MemberIDs {
			for _, b := range g.MemberIDs {
				if a == b {
					continue
				}
				pairs := target[a]
				if pairs == nil {
					pairs = make(map[string]bool)
					target[a] = pairs
				}
				pairs[b] = true
			}
		}
	}
	return ix
}

// SiblingsOf returns the union of co-members across every group containing
// the person, sorted for deterministic iteration.
func (ix *SiblingIndex) SiblingsOf(personID string) []string {
	set := make(map[string]bool)
	for other := range ix.separate[personID] {
		set[other] = true
	}
	for other := range ix.together[personID] {
		set[other] = true
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PairingIntent resolves the relation between two persons.
func (ix *SiblingIndex) PairingIntent(a, b string) PairingIntent {
	if ix.separate[a][b] {
		return IntentSeparateForbidden
	}
	if ix.together[a][b] {
		return IntentTogetherPreferred
	}
	return IntentNeutral
}

// HasSeparateConflict reports whether any of the already assigned persons is
// forbidden from sharing a date with the candidate.
func (ix *SiblingIndex) HasSeparateConflict(candidateID string, assigned map[string]bool) bool {
	pairs := ix.separate[candidateID]
	if len(pairs) == 0 {
		return false
	}
	for other := range pairs {
		if assigned[other] {
			return true
		}
	}
	return false
}

// HasTogetherBonus reports whether a TOGETHER sibling of the candidate is
// already assigned on the date. Pairs that are also SEPARATE never count;
// separation takes precedence.
func (ix *SiblingIndex) HasTogetherBonus(candidateID string, assigned map[string]bool) bool {
	pairs := ix.together[candidateID]
	if len(pairs) == 0 {
		return false
	}
	for other := range pairs {
		if assigned[other] && !ix.separate[candidateID][other] {
			return true
		}
	}
	return false
}
