package core

// VerdictKind is the categorical judgment extracted from an oracle turn.
type VerdictKind string

const (
	VerdictCorrect      VerdictKind = "correct"
	VerdictIncorrect    VerdictKind = "incorrect"
	VerdictAdmit        VerdictKind = "admit"
	VerdictRebut        VerdictKind = "rebut"
	VerdictResolved     VerdictKind = "resolved"
	VerdictConceded     VerdictKind = "conceded"
	VerdictRejected     VerdictKind = "rejected"
	VerdictUnrecognized VerdictKind = "unrecognized"
)

// Decision sets accepted at each stage of a session.
var (
	VerifyDecisions   = []VerdictKind{VerdictCorrect, VerdictIncorrect}
	DefenseDecisions  = []VerdictKind{VerdictAdmit, VerdictRebut}
	ReactionDecisions = []VerdictKind{VerdictResolved, VerdictConceded, VerdictRejected}
)

// Verdict is exactly one parsed outcome of an oracle turn.
//
// Payload fields depend on Kind:
//   - Incorrect: Critique, Solution (the proposed correct solution)
//   - Admit: Solution (the corrected solution, empty if not delimited)
//   - Rebut: Body (the defense)
//   - Rejected: Critique (the restated critique), Solution (restated solution)
type Verdict struct {
	Kind     VerdictKind `json:"kind"`
	Critique string      `json:"critique,omitempty"`
	Solution string      `json:"solution,omitempty"`
	Body     string      `json:"body,omitempty"`
	Raw      string      `json:"-"`
}

// Recognized reports whether a marker was found.
func (v Verdict) Recognized() bool {
	return v.Kind != VerdictUnrecognized && v.Kind != ""
}
