package workflow

import (
	"strings"

	"certflow/pkg/domain"
)

// Action is one permitted command together with its display label.
type Action struct {
	Action Command `json:"action"`
	Label  string  `json:"label"`
}

// AllowedActions computes the ordered set of commands the actor may issue
// against the application right now. Pure function over (application, actor);
// no I/O. The result drives client UI and is advisory only: every command
// handler re-checks role, state and preconditions before mutating, so a stale
// or forged action list authorizes nothing.
func AllowedActions(app *Application, actor Actor) []Action {
	allowed := []Action{}
	state := app.State

	if actor.Role == domain.RoleApplicant && app.OwnedBy(actor.ID) {
		allowed = append(allowed, applicantActions(app, state)...)
	}

	if actor.Role == domain.RoleOperator || actor.Role == domain.RoleAdmin {
		allowed = append(allowed, staffActions(app, state)...)
	}

	if actor.Role == domain.RoleInspector || actor.Role == domain.RoleAdmin {
		allowed = append(allowed, inspectorActions(app, state)...)
	}

	if actor.Role == domain.RoleAdmin {
		allowed = append(allowed, Action{CommandAdminForce, "Force state change"})
	}

	return allowed
}

func applicantActions(app *Application, state State) []Action {
	var allowed []Action
	switch state {
	case StateDraft:
		allowed = append(allowed, Action{CommandSubmitDocs, "Submit documentation"})
	case StateDocCorrections:
		allowed = append(allowed, Action{CommandSubmitFixes, "Submit corrected documentation"})
	case StateNonconformities:
		allowed = append(allowed, Action{CommandSubmitFixes, "Submit nonconformity fixes"})
	case StateContractSigned:
		if app.ProductType.RequiresContract() && operatorSigned(app) && !applicantSigned(app) {
			allowed = append(allowed, Action{CommandSignContract, "Sign contract"})
		}
	case StateInspectionCompleted:
		if app.InspectionSignedByInspector != nil && app.InspectionSignedByApplicant == nil {
			allowed = append(allowed, Action{CommandSignInspection, "Sign inspection report"})
		}
	}
	return allowed
}

func staffActions(app *Application, state State) []Action {
	var allowed []Action
	switch state {
	case StateSubmittedDocs:
		allowed = append(allowed, Action{CommandAnalyzeDocs, "Review documentation"})
	case StateDocAnalysis, StateDocCorrections:
		allowed = append(allowed, Action{CommandAnalyzeDocs, "Revise documentation review"})
	case StatePreTestsDecision:
		allowed = append(allowed, preTestsActions(app)...)
	case StateSamplingAndTests:
		if app.HasSamplingData() {
			allowed = append(allowed,
				Action{CommandInputSamplingData, "Revise sampling data"},
				Action{CommandContinueToTests, "Proceed to certification tests"})
		} else {
			allowed = append(allowed, Action{CommandInputSamplingData, "Enter sampling data"})
		}
	case StateCertificationTests:
		allowed = append(allowed, Action{CommandRunCertificationTests, "Run certification tests"})
	case StateTestProtocols:
		if app.HasCertificationData() {
			allowed = append(allowed, Action{CommandInputCertificationData, "Revise certification test data"})
		} else {
			allowed = append(allowed, Action{CommandInputCertificationData, "Enter certification test data"})
		}
		allowed = append(allowed, Action{CommandIssueProtocols, "Issue test protocols"})
	case StateTestsAnalysis:
		allowed = append(allowed, Action{CommandAnalyzeResults, "Analyze results"})
	case StateApproved:
		allowed = append(allowed, Action{CommandGenerateCertificate, "Generate certificate"})
	case StateCertificateGenerated:
		if app.ProductType == domain.ProductSingle {
			allowed = append(allowed, Action{CommandRegister, "Register in the registry"})
		} else {
			allowed = append(allowed, Action{CommandContinueProcess, "Proceed to contract"})
		}
	case StateContractSigned:
		if !operatorSigned(app) {
			allowed = append(allowed, Action{CommandOperatorSignContract, "Sign contract (operator)"})
		}
		if operatorSigned(app) && applicantSigned(app) {
			allowed = append(allowed, Action{CommandRegister, "Register in the registry"})
		}
	case StateInspectionDenied:
		allowed = append(allowed, Action{CommandRequestReinspection, "Request re-inspection"})
	case StateInspectionCompleted:
		if certificateRevoked(app) {
			allowed = append(allowed, Action{CommandRequestReinspection, "Request re-inspection"})
		}
	}
	return allowed
}

func preTestsActions(app *Application) []Action {
	if app.ProductType == domain.ProductSingle {
		return []Action{{CommandPreTestsDecision, "Proceed to certification tests"}}
	}
	if app.ProductType == domain.ProductSerial {
		if app.HasSerialPreEval() {
			return []Action{
				{CommandSerialPreEval, "Revise serial production evaluation"},
				{CommandPreTestsDecision, "Proceed to sampling"},
			}
		}
		// Sampling for serial production is locked until the four-criterion
		// evaluation is saved.
		return []Action{{CommandSerialPreEval, "Serial production pre-evaluation"}}
	}
	return []Action{{CommandPreTestsDecision, "Proceed to sampling"}}
}

func inspectorActions(app *Application, state State) []Action {
	var allowed []Action
	switch state {
	case StateAwaitingInspection:
		if app.ProductType != domain.ProductSerial {
			return nil
		}
		// A cancelled inspection suppresses inspector actions until the
		// operator requests a re-inspection.
		if app.Meta.InspectionCancelled != nil && app.Meta.ReinspectionRequest == nil {
			return nil
		}
		allowed = append(allowed,
			Action{CommandPlanInspection, "Plan inspection"},
			Action{CommandConductInspectionNow, "Conduct inspection now"},
			Action{CommandRescheduleInspection, "Reschedule inspection"},
			Action{CommandDenyInspection, "Deny inspection"})
	case StateInspectionPlanned:
		allowed = append(allowed,
			Action{CommandCompleteInspection, "Complete inspection"},
			Action{CommandCancelInspection, "Cancel inspection"},
			Action{CommandDenyInspection, "Deny inspection"})
	case StateInspectionCompleted:
		if app.InspectionSignedByInspector == nil {
			allowed = append(allowed, Action{CommandSignInspection, "Sign inspection report"})
		}
	}
	return allowed
}

func operatorSigned(app *Application) bool  { return app.Meta.OperatorSignedAt != nil }
func applicantSigned(app *Application) bool { return app.ContractSignedAt != nil }

// certificateRevoked reports whether the last completed inspection ended in a
// revocation verdict, which is what makes a re-inspection meaningful from
// inspection_completed.
func certificateRevoked(app *Application) bool {
	return strings.Contains(strings.ToLower(app.InspectionFinalText), verdictRevokedMarker)
}
