package enums

type Relationship string

const (
	RelationshipBlocked                 Relationship = "blocked"
	RelationshipMatched                 Relationship = "matched"
	RelationshipWaitingForTheirResponse Relationship = "waiting_for_their_response"
	RelationshipWaitingForYourResponse  Relationship = "waiting_for_your_response"
	RelationshipNone                    Relationship = "no_relation"
)

// PairState is the state of the match state machine for an unordered pair.
type PairState string

const (
	PairStateNoRelation       PairState = "no_relation"
	PairStateOneSidedInterest PairState = "one_sided_interest"
	PairStateMatched          PairState = "matched"
	PairStateBlocked          PairState = "blocked"
)
