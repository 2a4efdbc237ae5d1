package checkout

type Phase string

const (
	PhaseSummary         Phase = "SUMMARY"
	PhaseProcessing      Phase = "PROCESSING"
	PhaseAwaitingPayment Phase = "AWAITING_PAYMENT"
	PhaseSuccess         Phase = "SUCCESS"
)

var validNext = map[Phase]map[Phase]bool{
	PhaseSummary:         {PhaseProcessing: true},
	PhaseProcessing:      {PhaseAwaitingPayment: true, PhaseSummary: true},
	PhaseAwaitingPayment: {PhaseSuccess: true},
	PhaseSuccess:         {},
}

func CanTransition(from, to Phase) bool {
	return validNext[from][to]
}

func (p Phase) IsTerminal() bool {
	return p == PhaseSuccess
}

func (p Phase) String() string {
	return string(p)
}
