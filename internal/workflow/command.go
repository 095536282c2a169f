package workflow

import (
	"certflow/internal/certificate"
	"certflow/internal/scoring"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
)

// Command is the closed set of named operations on an application. Dispatch
// is an exhaustive switch in Service.Execute: adding a constant without a
// handler arm is caught at review, not at runtime string comparison.
type Command string

const (
	CommandSubmitDocs             Command = "submit_docs"
	CommandAnalyzeDocs            Command = "analyze_docs"
	CommandPreTestsDecision       Command = "pre_tests_decision"
	CommandSerialPreEval          Command = "serial_pre_eval"
	CommandInputSamplingData      Command = "input_sampling_data"
	CommandContinueToTests        Command = "continue_to_tests"
	CommandRunCertificationTests  Command = "run_certification_tests"
	CommandInputCertificationData Command = "input_certification_data"
	CommandIssueProtocols         Command = "issue_protocols"
	CommandAnalyzeResults         Command = "analyze_results"
	CommandSubmitFixes            Command = "submit_fixes"
	CommandGenerateCertificate    Command = "generate_certificate"
	CommandContinueProcess        Command = "continue_process"
	CommandOperatorSignContract   Command = "operator_sign_contract"
	CommandSignContract           Command = "sign_contract"
	CommandRegister               Command = "register"
	CommandRequestReinspection    Command = "request_reinspection"
	CommandAdminForce             Command = "admin_force"

	// Inspection commands are handled by the inspection service but belong to
	// the same declared action set the gate advertises.
	CommandPlanInspection       Command = "plan_inspection"
	CommandCancelInspection     Command = "cancel_inspection"
	CommandCompleteInspection   Command = "complete_inspection"
	CommandDenyInspection       Command = "deny_inspection"
	CommandRescheduleInspection Command = "reschedule_inspection"
	CommandConductInspectionNow Command = "conduct_inspection_now"
	CommandSignInspection       Command = "sign_inspection"
)

var validCommands = map[Command]bool{
	CommandSubmitDocs:             true,
	CommandAnalyzeDocs:            true,
	CommandPreTestsDecision:       true,
	CommandSerialPreEval:          true,
	CommandInputSamplingData:      true,
	CommandContinueToTests:        true,
	CommandRunCertificationTests:  true,
	CommandInputCertificationData: true,
	CommandIssueProtocols:         true,
	CommandAnalyzeResults:         true,
	CommandSubmitFixes:            true,
	CommandGenerateCertificate:    true,
	CommandContinueProcess:        true,
	CommandOperatorSignContract:   true,
	CommandSignContract:           true,
	CommandRegister:               true,
	CommandRequestReinspection:    true,
	CommandAdminForce:             true,
	CommandPlanInspection:         true,
	CommandCancelInspection:       true,
	CommandCompleteInspection:     true,
	CommandDenyInspection:         true,
	CommandRescheduleInspection:   true,
	CommandConductInspectionNow:   true,
	CommandSignInspection:         true,
}

// ParseCommand constructs a Command from external input.
//
// Errors: CodeValidation when the value is empty or not a declared command.
func ParseCommand(s string) (Command, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "command cannot be empty")
	}
	c := Command(s)
	if !validCommands[c] {
		return "", dErrors.New(dErrors.CodeValidation, "unknown command")
	}
	return c, nil
}

func (c Command) String() string { return string(c) }

// Actor is the authenticated identity issuing a command. Role is resolved by
// the user directory before the command reaches the workflow; the handlers
// re-check it against each command's guard regardless of what the gate
// previously advertised.
type Actor struct {
	ID   domain.UserID
	Role domain.Role
}

// Decision is the operator's choice at the pre-tests branch point.
type Decision string

const (
	DecisionCertificationTests Decision = "certification_tests"
	DecisionSampling           Decision = "sampling"
)

// SamplingInput is the boundary form of SamplingData.
type SamplingInput struct {
	Code              string
	BatchNumber       string
	SamplingPlace     string
	SamplingDate      string
	Quantity          string
	InspectorName     string
	SerialNumber      string
	StorageConditions string
	SampleCode        string
}

// CertificationInput is the boundary form of CertificationData.
type CertificationInput struct {
	ProtocolNumber string
	ConductDate    string
	Organization   string
	TestMethod     string
	Result         string
	Score          int
}

// Params carries the per-command arguments. Only the fields a given command
// reads are consulted; its handler validates presence.
type Params struct {
	Score           *int
	RejectionReason string

	Decision Decision

	PreEvalScores *scoring.SerialPreEvalScores
	ChosenYears   int

	Sampling      *SamplingInput
	Certification *CertificationInput

	ValidityYears int

	// admin_force
	ToState State
	Reason  string
}

// Result is the successful outcome of a command: the state the application is
// now in plus any derived payload the command produced.
type Result struct {
	Next         State
	Score        int
	AllowedYears []int
	Tests        []Test
	Certificate  *certificate.Certificate
}
