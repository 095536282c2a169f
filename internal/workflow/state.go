package workflow

import dErrors "certflow/pkg/domain-errors"

// State is one step of the application lifecycle. Invariant: an application's
// state is always a member of the declared set; ParseState enforces that at
// trust boundaries and AdminForce re-validates before bypassing guards.
type State string

const (
	StateDraft                State = "draft"
	StateSubmittedDocs        State = "submitted_docs"
	StateDocAnalysis          State = "doc_analysis"
	StateDocCorrections       State = "doc_corrections"
	StatePreTestsDecision     State = "pre_tests_decision"
	StateSamplingAndTests     State = "sampling_and_tests"
	StateCertificationTests   State = "certification_tests"
	StateTestProtocols        State = "test_protocols"
	StateTestsAnalysis        State = "tests_analysis"
	StateNonconformities      State = "nonconformities"
	StateApproved             State = "approved"
	StateCertificateGenerated State = "certificate_generated"
	StateContractSigned       State = "contract_signed"
	StateRegistered           State = "registered"
	StateAwaitingInspection   State = "awaiting_inspection"
	StateInspectionPlanned    State = "inspection_planned"
	StateInspectionCompleted  State = "inspection_completed"
	StateInspectionDenied     State = "inspection_denied"
	StateClosed               State = "closed"
)

// States lists every lifecycle state in process order.
var States = []State{
	StateDraft,
	StateSubmittedDocs,
	StateDocAnalysis,
	StateDocCorrections,
	StatePreTestsDecision,
	StateSamplingAndTests,
	StateCertificationTests,
	StateTestProtocols,
	StateTestsAnalysis,
	StateNonconformities,
	StateApproved,
	StateCertificateGenerated,
	StateContractSigned,
	StateRegistered,
	StateAwaitingInspection,
	StateInspectionPlanned,
	StateInspectionCompleted,
	StateInspectionDenied,
	StateClosed,
}

var validStates = func() map[State]bool {
	m := make(map[State]bool, len(States))
	for _, s := range States {
		m[s] = true
	}
	return m
}()

// ParseState constructs a State from external input.
//
// Errors: CodeValidation when the value is empty or not a declared state.
func ParseState(s string) (State, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "state cannot be empty")
	}
	st := State(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown state")
	}
	return st, nil
}

// IsValid checks membership in the declared state set.
func (s State) IsValid() bool {
	return validStates[s]
}

// IsTerminal reports whether the lifecycle ends here. Serial products never
// reach a terminal state on the normal path; they cycle through the
// inspection states until an operator stops requesting reinspection.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// RequiresInspection reports whether planned inspection records are still
// meaningful for an application in this state. Stale planned records are
// purged for every other state.
func (s State) RequiresInspection() bool {
	return s == StateAwaitingInspection || s == StateInspectionPlanned
}

func (s State) String() string {
	return string(s)
}
