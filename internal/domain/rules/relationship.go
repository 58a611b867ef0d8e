package rules

import (
	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

// PairFacts is everything the stores know about a pair, seen from Viewer.
type PairFacts struct {
	Viewer          int64
	Other           int64
	BlockedByViewer bool
	BlockedByOther  bool
	Match           *model.Match
	ViewerSwipe     *model.Swipe
	OtherSwipe      *model.Swipe
	Messages        int64
}

func (f PairFacts) Blocked() bool {
	return f.BlockedByViewer || f.BlockedByOther
}

// DeriveRelationship applies the priority chain block > match > outgoing > incoming.
func DeriveRelationship(f PairFacts) enums.Relationship {
	switch {
	case f.Blocked():
		return enums.RelationshipBlocked
	case f.Match != nil:
		return enums.RelationshipMatched
	case f.ViewerSwipe != nil && f.ViewerSwipe.Status.IsPositive():
		return enums.RelationshipWaitingForTheirResponse
	case f.OtherSwipe != nil && f.OtherSwipe.Status.IsPositive():
		return enums.RelationshipWaitingForYourResponse
	default:
		return enums.RelationshipNone
	}
}

// DerivePairState maps the facts onto the per-pair match state machine.
func DerivePairState(f PairFacts) enums.PairState {
	switch DeriveRelationship(f) {
	case enums.RelationshipBlocked:
		return enums.PairStateBlocked
	case enums.RelationshipMatched:
		return enums.PairStateMatched
	case enums.RelationshipWaitingForTheirResponse, enums.RelationshipWaitingForYourResponse:
		return enums.PairStateOneSidedInterest
	default:
		return enums.PairStateNoRelation
	}
}

// ShouldBeMatched reports whether both directions currently hold a positive swipe.
func ShouldBeMatched(f PairFacts) bool {
	if f.Blocked() {
		return false
	}
	return f.ViewerSwipe != nil && f.ViewerSwipe.Status.IsPositive() &&
		f.OtherSwipe != nil && f.OtherSwipe.Status.IsPositive()
}

// Violations lists the invariants the facts break; an empty result means the pair is consistent.
func Violations(f PairFacts) []string {
	var out []string
	if f.Blocked() {
		if f.Match != nil {
			out = append(out, "match exists on blocked pair")
		}
		if f.ViewerSwipe != nil || f.OtherSwipe != nil {
			out = append(out, "swipe exists on blocked pair")
		}
		if f.Messages > 0 {
			out = append(out, "messages exist on blocked pair")
		}
		return out
	}
	if f.Match != nil && !ShouldBeMatched(f) {
		out = append(out, "match without mutual positive swipes")
	}
	if f.Match == nil && ShouldBeMatched(f) {
		out = append(out, "mutual positive swipes without match")
	}
	if f.Match == nil && f.Messages > 0 {
		out = append(out, "messages without match")
	}
	return out
}
