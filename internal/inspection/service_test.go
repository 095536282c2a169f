package inspection

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certflow/internal/workflow"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	audit "certflow/pkg/platform/audit"
)

// =============================================================================
// Inspection Service Test Suite
// =============================================================================
// Justification for unit tests: the inspection sub-workflow mutates two
// aggregates at once (the inspection record and the parent application).
// Tests verify the one-live-planned invariant, parent-state forcing, verdict
// application, and the report signing protocol.

type auditRecorder struct {
	events []audit.Event
}

func (r *auditRecorder) Emit(_ context.Context, e audit.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *auditRecorder) lastAction() string {
	if len(r.events) == 0 {
		return ""
	}
	return r.events[len(r.events)-1].Action
}

func (r *auditRecorder) lastNote() string {
	if len(r.events) == 0 {
		return ""
	}
	return r.events[len(r.events)-1].Note
}

type InspectionServiceSuite struct {
	suite.Suite
	ctx     context.Context
	apps    *workflow.InMemoryStore
	store   *InMemoryStore
	auditor *auditRecorder
	service *Service
	now     time.Time

	inspector workflow.Actor
	applicant workflow.Actor
	operator  workflow.Actor
}

func TestInspectionServiceSuite(t *testing.T) {
	suite.Run(t, new(InspectionServiceSuite))
}

func (s *InspectionServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.apps = workflow.NewInMemoryStore()
	s.store = NewInMemoryStore()
	s.auditor = &auditRecorder{}
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.inspector = workflow.Actor{ID: domain.NewUserID(), Role: domain.RoleInspector}
	s.applicant = workflow.Actor{ID: domain.NewUserID(), Role: domain.RoleApplicant}
	s.operator = workflow.Actor{ID: domain.NewUserID(), Role: domain.RoleOperator}

	s.service = NewService(Deps{
		Store:  s.store,
		Apps:   s.apps,
		Locker: workflow.NewShardedLocker(),
		Audit:  s.auditor,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return s.now },
	})
}

func (s *InspectionServiceSuite) seedApp(state workflow.State) *workflow.Application {
	app := &workflow.Application{
		ID:          domain.NewApplicationID(),
		ProductName: "Widget",
		ProductType: domain.ProductSerial,
		ApplicantID: s.applicant.ID,
		State:       state,
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	}
	s.Require().NoError(s.apps.Create(s.ctx, app))
	return app
}

func (s *InspectionServiceSuite) loadApp(id domain.ApplicationID) *workflow.Application {
	app, err := s.apps.Get(s.ctx, id)
	s.Require().NoError(err)
	return app
}

func (s *InspectionServiceSuite) saveApp(app *workflow.Application) {
	s.Require().NoError(s.apps.Update(s.ctx, app))
}

func (s *InspectionServiceSuite) mustPlan(appID domain.ApplicationID, typ Type, date string) *Inspection {
	rec, err := s.service.Plan(s.ctx, s.inspector, appID, PlanInput{
		Date:        date,
		Responsible: "I. Petrenko",
		Type:        typ,
		OrderSigned: true,
	})
	s.Require().NoError(err)
	return rec
}

func passingChecklist() Checklist {
	return Checklist{DocumentsOk: true, ProcessOk: true, ProductOk: true}
}

// =============================================================================
// Planning
// =============================================================================

func (s *InspectionServiceSuite) TestPlanValidation() {
	app := s.seedApp(workflow.StateAwaitingInspection)

	s.Run("inspector role required", func() {
		_, err := s.service.Plan(s.ctx, s.operator, app.ID, PlanInput{Date: "2026-04-01", OrderSigned: true})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("signed order required", func() {
		_, err := s.service.Plan(s.ctx, s.inspector, app.ID, PlanInput{Date: "2026-04-01"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("date must be well formed", func() {
		_, err := s.service.Plan(s.ctx, s.inspector, app.ID, PlanInput{Date: "04/01/2026", OrderSigned: true})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.Plan(s.ctx, s.inspector, app.ID, PlanInput{Date: "2026-13-01", OrderSigned: true})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown type is rejected", func() {
		_, err := s.service.Plan(s.ctx, s.inspector, app.ID, PlanInput{Date: "2026-04-01", Type: Type("surprise"), OrderSigned: true})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown application maps to not found", func() {
		_, err := s.service.Plan(s.ctx, s.inspector, domain.NewApplicationID(), PlanInput{Date: "2026-04-01", OrderSigned: true})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *InspectionServiceSuite) TestPlanForcesParentState() {
	app := s.seedApp(workflow.StateAwaitingInspection)
	stored := s.loadApp(app.ID)
	stored.InspectionSignedByInspector = &s.now
	stored.InspectionSignedByApplicant = &s.now
	s.saveApp(stored)

	rec := s.mustPlan(app.ID, "", "2026-04-01")
	s.Equal(TypePrimary, rec.Type) // empty type defaults to primary
	s.Equal(StatusPlanned, rec.Status)
	s.Require().NotNil(rec.ResponsibleID)
	s.Equal(s.inspector.ID, *rec.ResponsibleID)

	after := s.loadApp(app.ID)
	s.Equal(workflow.StateInspectionPlanned, after.State)
	s.Nil(after.InspectionSignedByInspector)
	s.Nil(after.InspectionSignedByApplicant)
	s.Equal("plan_inspection", s.auditor.lastAction())
}

func (s *InspectionServiceSuite) TestPlanKeepsOneLiveRecord() {
	app := s.seedApp(workflow.StateAwaitingInspection)
	first := s.mustPlan(app.ID, TypePrimary, "2026-04-01")

	s.Run("second primary conflicts", func() {
		_, err := s.service.Plan(s.ctx, s.inspector, app.ID, PlanInput{Date: "2026-04-02", Type: TypePrimary, OrderSigned: true})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("replanning updates the live record in place", func() {
		second := s.mustPlan(app.ID, TypeRepeat, "2026-05-01")
		s.Equal(first.ID, second.ID)
		s.Equal(TypeRepeat, second.Type)
		s.Equal("2026-05-01", second.Date)
		s.Equal("update_inspection", s.auditor.lastAction())

		records, err := s.store.ListByApplication(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Len(records, 1)
	})
}

// =============================================================================
// Cancellation and Denial
// =============================================================================

func (s *InspectionServiceSuite) TestCancelRevertsWhenNothingPlanned() {
	app := s.seedApp(workflow.StateAwaitingInspection)
	rec := s.mustPlan(app.ID, TypePrimary, "2026-04-01")

	s.Require().NoError(s.service.Cancel(s.ctx, s.inspector, rec.ID))

	_, err := s.store.Get(s.ctx, rec.ID)
	s.Error(err)

	after := s.loadApp(app.ID)
	s.Equal(workflow.StateAwaitingInspection, after.State)
	s.Require().NotNil(after.Meta.InspectionCancelled)
	s.Equal(s.inspector.ID, after.Meta.InspectionCancelled.By)
}

func (s *InspectionServiceSuite) TestCancelKeepsPlannedStateWhileAnotherPlanRemains() {
	app := s.seedApp(workflow.StateAwaitingInspection)
	rec := s.mustPlan(app.ID, TypePrimary, "2026-04-01")

	// A residual planned record left over from an earlier cycle.
	residual := &Inspection{
		ID:            domain.NewInspectionID(),
		ApplicationID: app.ID,
		Date:          "2026-04-15",
		Type:          TypeRepeat,
		Status:        StatusPlanned,
		CreatedAt:     s.now.Add(-time.Hour),
		UpdatedAt:     s.now.Add(-time.Hour),
	}
	s.Require().NoError(s.store.Save(s.ctx, residual))

	s.Require().NoError(s.service.Cancel(s.ctx, s.inspector, rec.ID))

	_, err := s.store.Get(s.ctx, rec.ID)
	s.Error(err)
	_, err = s.store.Get(s.ctx, residual.ID)
	s.NoError(err)

	after := s.loadApp(app.ID)
	s.Equal(workflow.StateInspectionPlanned, after.State)
	s.Nil(after.Meta.InspectionCancelled)
}

func (s *InspectionServiceSuite) TestDeny() {
	s.Run("reason is mandatory", func() {
		app := s.seedApp(workflow.StateAwaitingInspection)
		err := s.service.Deny(s.ctx, s.inspector, app.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("only awaiting or planned applications can be denied", func() {
		app := s.seedApp(workflow.StateClosed)
		err := s.service.Deny(s.ctx, s.inspector, app.ID, "facility unreachable")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("denial marks the record and stamps the reason", func() {
		app := s.seedApp(workflow.StateAwaitingInspection)
		rec := s.mustPlan(app.ID, TypePrimary, "2026-04-01")

		s.Require().NoError(s.service.Deny(s.ctx, s.inspector, app.ID, "facility unreachable"))

		stored, err := s.store.Get(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(StatusDenied, stored.Status)
		s.NotNil(stored.CompletedAt)

		after := s.loadApp(app.ID)
		s.Equal(workflow.StateInspectionDenied, after.State)
		s.Require().NotNil(after.Meta.InspectionDenied)
		s.Equal("facility unreachable", after.Meta.InspectionDenied.Reason)

		// No planned record survives a denial.
		records, err := s.store.ListByApplication(s.ctx, app.ID)
		s.Require().NoError(err)
		for _, r := range records {
			s.NotEqual(StatusPlanned, r.Status)
		}
	})
}

// =============================================================================
// Completion
// =============================================================================

func (s *InspectionServiceSuite) TestCompleteAppliesVerdict() {
	app := s.seedApp(workflow.StateAwaitingInspection)
	rec := s.mustPlan(app.ID, TypePrimary, "2026-04-01")

	// A stale denial marker from a previous cycle must not survive completion.
	stored := s.loadApp(app.ID)
	stored.Meta.InspectionDenied = &workflow.DenialStamp{At: s.now, By: s.inspector.ID, Reason: "old"}
	s.saveApp(stored)

	s.Require().NoError(s.service.Complete(s.ctx, s.inspector, rec.ID, passingChecklist(), "all good"))

	done, err := s.store.Get(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(StatusCompleted, done.Status)
	s.Equal("all good", done.Notes)
	s.Require().NotNil(done.Checklist)
	s.True(done.Checklist.Pass())
	s.NotNil(done.CompletedAt)

	after := s.loadApp(app.ID)
	s.Equal(workflow.StateInspectionCompleted, after.State)
	s.Equal(workflow.InspectionResultConforms, after.InspectionResult)
	s.Equal(workflow.InspectionConclusionKept, after.InspectionConclusion)
	s.Equal(workflow.InspectionFinalConfirmed, after.InspectionFinalText)
	s.Nil(after.Meta.InspectionDenied)
	s.Nil(after.Meta.InspectionCancelled)

	// The audit trail carries the same final verdict text.
	s.Equal("complete_inspection", s.auditor.lastAction())
	s.Equal(workflow.InspectionFinalConfirmed, s.auditor.lastNote())
}

func (s *InspectionServiceSuite) TestCompleteFailedChecklistRevokes() {
	app := s.seedApp(workflow.StateAwaitingInspection)
	rec := s.mustPlan(app.ID, TypePrimary, "2026-04-01")

	checklist := passingChecklist()
	checklist.ProductOk = false
	s.Require().NoError(s.service.Complete(s.ctx, s.inspector, rec.ID, checklist, ""))

	after := s.loadApp(app.ID)
	s.Equal(workflow.StateInspectionCompleted, after.State)
	s.Equal(workflow.InspectionResultNonConforms, after.InspectionResult)
	s.Equal(workflow.InspectionFinalRevoked, after.InspectionFinalText)
	s.Equal(workflow.InspectionFinalRevoked, s.auditor.lastNote())
}

func (s *InspectionServiceSuite) TestConductNow() {
	s.Run("only while awaiting inspection", func() {
		app := s.seedApp(workflow.StateInspectionPlanned)
		_, err := s.service.ConductNow(s.ctx, s.inspector, app.ID, passingChecklist())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("creates a completed unscheduled record in one step", func() {
		app := s.seedApp(workflow.StateAwaitingInspection)
		rec, err := s.service.ConductNow(s.ctx, s.inspector, app.ID, passingChecklist())
		s.Require().NoError(err)
		s.Equal(TypeUnscheduled, rec.Type)
		s.Equal(StatusCompleted, rec.Status)
		s.Equal("2026-03-01", rec.Date)
		s.Equal("Conducted without prior planning", rec.Notes)

		s.Equal(workflow.StateInspectionCompleted, s.loadApp(app.ID).State)
	})
}

func (s *InspectionServiceSuite) TestReschedule() {
	s.Run("only while awaiting inspection", func() {
		app := s.seedApp(workflow.StateInspectionPlanned)
		_, err := s.service.Reschedule(s.ctx, s.inspector, app.ID, "2026-06-01")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("date must be well formed", func() {
		app := s.seedApp(workflow.StateAwaitingInspection)
		_, err := s.service.Reschedule(s.ctx, s.inspector, app.ID, "June 1st")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("replaces plans and stamps the move", func() {
		app := s.seedApp(workflow.StateAwaitingInspection)
		rec, err := s.service.Reschedule(s.ctx, s.inspector, app.ID, "2026-06-01")
		s.Require().NoError(err)
		s.Equal(TypeRescheduled, rec.Type)
		s.Equal(StatusPlanned, rec.Status)
		s.Equal("Inspection rescheduled", rec.Notes)

		after := s.loadApp(app.ID)
		s.Equal(workflow.StateInspectionPlanned, after.State)
		s.Require().NotNil(after.Meta.InspectionReschedule)
		s.Equal("2026-06-01", after.Meta.InspectionReschedule.To)
	})
}

// =============================================================================
// Report Signing
// =============================================================================

func (s *InspectionServiceSuite) TestSignProtocol() {
	app := s.seedApp(workflow.StateInspectionCompleted)

	s.Run("signature party must be inspector or applicant", func() {
		err := s.service.Sign(s.ctx, s.operator, app.ID, domain.RoleOperator)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("only an inspector signs as inspector", func() {
		err := s.service.Sign(s.ctx, s.applicant, app.ID, domain.RoleInspector)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("only the owner signs as applicant", func() {
		stranger := workflow.Actor{ID: domain.NewUserID(), Role: domain.RoleApplicant}
		err := s.service.Sign(s.ctx, stranger, app.ID, domain.RoleApplicant)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("applicant cannot sign before the inspector", func() {
		err := s.service.Sign(s.ctx, s.applicant, app.ID, domain.RoleApplicant)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("each party signs once in order", func() {
		s.Require().NoError(s.service.Sign(s.ctx, s.inspector, app.ID, domain.RoleInspector))
		err := s.service.Sign(s.ctx, s.inspector, app.ID, domain.RoleInspector)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		s.Require().NoError(s.service.Sign(s.ctx, s.applicant, app.ID, domain.RoleApplicant))
		err = s.service.Sign(s.ctx, s.applicant, app.ID, domain.RoleApplicant)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		after := s.loadApp(app.ID)
		s.NotNil(after.InspectionSignedByInspector)
		s.NotNil(after.InspectionSignedByApplicant)
	})

	s.Run("nothing to sign outside inspection_completed", func() {
		other := s.seedApp(workflow.StateAwaitingInspection)
		err := s.service.Sign(s.ctx, s.inspector, other.ID, domain.RoleInspector)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

// =============================================================================
// Planned Record Purging
// =============================================================================

func (s *InspectionServiceSuite) TestPurgePlanned() {
	app := s.seedApp(workflow.StateAwaitingInspection)
	rec := s.mustPlan(app.ID, TypePrimary, "2026-04-01")

	s.Run("keeps plans while the state requires inspection", func() {
		s.Require().NoError(s.service.PurgePlanned(s.ctx, app.ID))
		_, err := s.store.Get(s.ctx, rec.ID)
		s.NoError(err)
	})

	s.Run("removes plans once the state moved on", func() {
		stored := s.loadApp(app.ID)
		stored.State = workflow.StateClosed
		s.saveApp(stored)

		s.Require().NoError(s.service.PurgePlanned(s.ctx, app.ID))
		_, err := s.store.Get(s.ctx, rec.ID)
		s.Error(err)
	})
}
