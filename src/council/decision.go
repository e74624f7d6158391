package council

// Tally is the aggregated vote count for a proposal.
type Tally struct {
	Approve int `json:"approve"`
	Reject  int `json:"reject"`
	Abstain int `json:"abstain"`
}

// Total returns the number of electorate members who have voted.
func (t Tally) Total() int { return t.Approve + t.Reject + t.Abstain }

type Outcome int

const (
	StillOpen Outcome = iota
	Approved
	RejectedEarly
)

func (o Outcome) String() string {
	switch o {
	case Approved:
		return "approved"
	case RejectedEarly:
		return "rejected"
	}
	return "open"
}

// Threshold returns the approve-vote quorum for an electorate of n members:
// a strict majority, floor(n/2)+1.
func Threshold(n int) int { return n/2 + 1 }

// Decide computes the outcome of a proposal from its current tally.
// Approved once approvals reach the threshold; rejected early once the
// remaining unvoted members cannot lift approvals to the threshold even if
// every one of them approves. Abstentions shrink that remaining pool without
// counting toward approval.
func Decide(t Tally, snapshotN, thresholdT int) Outcome {
	if t.Approve >= thresholdT {
		return Approved
	}
	remaining := snapshotN - t.Total()
	if t.Approve+remaining < thresholdT {
		return RejectedEarly
	}
	return StillOpen
}
