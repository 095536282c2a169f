package inspection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"certflow/internal/workflow"
	"certflow/internal/workflow/metrics"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/audit"
	"certflow/pkg/platform/sentinel"
	txcontext "certflow/pkg/platform/tx"
)

var tracer = otel.Tracer("certflow/inspection")

// Service runs the inspection sub-workflow. It mutates both the inspection
// records and the parent application, always under the application lock
// shared with the workflow service, so parent-state forcing is atomic with
// the inspection mutation.
type Service struct {
	store   Store
	apps    workflow.Store
	locker  workflow.Locker
	auditor workflow.AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	txr     workflow.TxRunner
	now     func() time.Time
}

type Deps struct {
	Store   Store
	Apps    workflow.Store
	Locker  workflow.Locker
	Audit   workflow.AuditPublisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Tx      workflow.TxRunner
	Now     func() time.Time
}

func NewService(deps Deps) *Service {
	s := &Service{
		store:   deps.Store,
		apps:    deps.Apps,
		locker:  deps.Locker,
		auditor: deps.Audit,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		txr:     deps.Tx,
		now:     deps.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.txr == nil {
		s.txr = txcontext.Passthrough{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// withLockTx serializes on the application and runs the mutation inside one
// storage transaction, so the record write, the parent-state forcing and the
// audit append commit together.
func (s *Service) withLockTx(ctx context.Context, appID domain.ApplicationID, fn func(ctx context.Context) error) error {
	return s.locker.WithLock(ctx, appID, func(ctx context.Context) error {
		return s.txr.RunInTx(ctx, fn)
	})
}

// PlanInput carries the planning form.
type PlanInput struct {
	Date        string
	Responsible string
	Notes       string
	Type        Type
	OrderSigned bool
}

// Plan schedules an inspection. If a live planned record already exists for
// the application it is updated in place and residual planned duplicates are
// deleted, so the one-live-planned invariant holds. Planning forces the
// application to inspection_planned and clears both inspection signatures.
func (s *Service) Plan(ctx context.Context, actor workflow.Actor, appID domain.ApplicationID, in PlanInput) (*Inspection, error) {
	ctx, span := s.span(ctx, "inspection.Plan", appID)
	defer span.End()

	if err := requireInspector(actor); err != nil {
		return nil, s.fail("plan", err)
	}
	if !in.OrderSigned {
		return nil, s.fail("plan", dErrors.New(dErrors.CodeValidation, "a signed inspection order is required"))
	}
	if err := ValidateDate(in.Date); err != nil {
		return nil, s.fail("plan", err)
	}
	if in.Type == "" {
		in.Type = TypePrimary
	} else if _, err := ParseType(string(in.Type)); err != nil {
		return nil, s.fail("plan", err)
	}

	var planned *Inspection
	err := s.withLockTx(ctx, appID, func(ctx context.Context) error {
		app, err := s.loadApp(ctx, appID)
		if err != nil {
			return err
		}
		records, err := s.store.ListByApplication(ctx, appID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "list inspections")
		}

		// A second primary inspection is a conflict as long as any primary
		// record is still live.
		if in.Type == TypePrimary {
			for _, rec := range records {
				if rec.Type == TypePrimary {
					return dErrors.New(dErrors.CodeConflict,
						"a primary inspection already exists for this application; choose another type")
				}
			}
		}

		now := s.now()
		rec := findPlanned(records)
		created := rec == nil
		if created {
			rec = &Inspection{
				ID:            domain.NewInspectionID(),
				ApplicationID: appID,
				CreatedAt:     now,
			}
		}
		rec.Date = in.Date
		rec.Responsible = in.Responsible
		rec.Notes = in.Notes
		rec.Type = in.Type
		rec.OrderSigned = in.OrderSigned
		rec.Status = StatusPlanned
		responsibleID := actor.ID
		rec.ResponsibleID = &responsibleID
		rec.UpdatedAt = now

		if err := s.store.Save(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save inspection")
		}
		if err := s.deletePlannedExcept(ctx, records, rec.ID); err != nil {
			return err
		}

		from := app.State
		app.State = workflow.StateInspectionPlanned
		app.InspectionSignedByInspector = nil
		app.InspectionSignedByApplicant = nil
		app.UpdatedAt = now
		if err := s.apps.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update application")
		}

		action := "plan_inspection"
		if !created {
			action = "update_inspection"
		}
		s.emit(ctx, actor, action, from, app.State, appID, "type "+rec.Type.String())
		planned = rec
		return nil
	})
	if err != nil {
		return nil, s.fail("plan", err)
	}
	s.metrics.IncInspection("plan", "ok")
	return planned, nil
}

// Cancel deletes the planned inspection record. When no other planned record
// remains the application reverts to awaiting_inspection and the cancellation
// is stamped; inspector actions then stay suppressed until the operator
// requests a re-inspection.
func (s *Service) Cancel(ctx context.Context, actor workflow.Actor, id domain.InspectionID) error {
	if err := requireInspector(actor); err != nil {
		return s.fail("cancel", err)
	}
	rec, err := s.loadInspection(ctx, id)
	if err != nil {
		return s.fail("cancel", err)
	}

	err = s.withLockTx(ctx, rec.ApplicationID, func(ctx context.Context) error {
		if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete inspection")
		}
		records, err := s.store.ListByApplication(ctx, rec.ApplicationID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "list inspections")
		}
		app, err := s.loadApp(ctx, rec.ApplicationID)
		if err != nil {
			return err
		}

		from := app.State
		now := s.now()
		if findPlanned(records) == nil {
			app.State = workflow.StateAwaitingInspection
			app.InspectionSignedByInspector = nil
			app.InspectionSignedByApplicant = nil
			app.Meta.InspectionCancelled = &workflow.ActorStamp{At: now, By: actor.ID}
		}
		app.UpdatedAt = now
		if err := s.apps.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update application")
		}
		s.emit(ctx, actor, "cancel_inspection", from, app.State, rec.ApplicationID, rec.ID.String())
		return nil
	})
	if err != nil {
		return s.fail("cancel", err)
	}
	s.metrics.IncInspection("cancel", "ok")
	return nil
}

// Deny refuses to inspect. Valid while the application awaits or has a
// planned inspection; the reason is mandatory and stamped into meta. All
// planned records are purged.
func (s *Service) Deny(ctx context.Context, actor workflow.Actor, appID domain.ApplicationID, reason string) error {
	if err := requireInspector(actor); err != nil {
		return s.fail("deny", err)
	}
	if reason == "" {
		return s.fail("deny", dErrors.New(dErrors.CodeValidation, "a denial reason is required"))
	}

	err := s.withLockTx(ctx, appID, func(ctx context.Context) error {
		app, err := s.loadApp(ctx, appID)
		if err != nil {
			return err
		}
		if app.State != workflow.StateAwaitingInspection && app.State != workflow.StateInspectionPlanned {
			return dErrors.New(dErrors.CodeInvalidState, "application is not awaiting inspection")
		}

		now := s.now()
		records, err := s.store.ListByApplication(ctx, appID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "list inspections")
		}
		if rec := findPlanned(records); rec != nil {
			rec.Status = StatusDenied
			rec.CompletedAt = &now
			rec.UpdatedAt = now
			if err := s.store.Save(ctx, rec); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "save inspection")
			}
		}

		from := app.State
		app.State = workflow.StateInspectionDenied
		app.Meta.InspectionDenied = &workflow.DenialStamp{At: now, By: actor.ID, Reason: reason}
		app.UpdatedAt = now
		if err := s.apps.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update application")
		}
		if err := s.purgePlannedLocked(ctx, appID); err != nil {
			return err
		}
		s.emit(ctx, actor, "deny_inspection", from, app.State, appID, reason)
		return nil
	})
	if err != nil {
		return s.fail("deny", err)
	}
	s.metrics.IncInspection("deny", "ok")
	return nil
}

// Complete closes the planned inspection with a filled checklist. The AND of
// the three items decides the verdict written onto the application; prior
// cancellation and denial markers are cleared, planned records purged.
func (s *Service) Complete(ctx context.Context, actor workflow.Actor, id domain.InspectionID, checklist Checklist, notes string) error {
	if err := requireInspector(actor); err != nil {
		return s.fail("complete", err)
	}
	rec, err := s.loadInspection(ctx, id)
	if err != nil {
		return s.fail("complete", err)
	}

	err = s.withLockTx(ctx, rec.ApplicationID, func(ctx context.Context) error {
		app, err := s.loadApp(ctx, rec.ApplicationID)
		if err != nil {
			return err
		}

		now := s.now()
		rec.Status = StatusCompleted
		rec.Checklist = &checklist
		if notes != "" {
			rec.Notes = notes
		}
		rec.CompletedAt = &now
		rec.UpdatedAt = now
		if err := s.store.Save(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save inspection")
		}

		from := app.State
		s.applyVerdict(app, checklist.Pass(), now)
		if err := s.apps.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update application")
		}
		if err := s.purgePlannedLocked(ctx, rec.ApplicationID); err != nil {
			return err
		}
		s.emit(ctx, actor, "complete_inspection", from, app.State, rec.ApplicationID, verdictNote(checklist.Pass()))
		return nil
	})
	if err != nil {
		return s.fail("complete", err)
	}
	s.metrics.IncInspection("complete", "ok")
	return nil
}

// ConductNow performs an unscheduled inspection in one step: a completed
// record is created directly and the application resolves exactly as with
// Complete. Only valid while the application awaits inspection.
func (s *Service) ConductNow(ctx context.Context, actor workflow.Actor, appID domain.ApplicationID, checklist Checklist) (*Inspection, error) {
	if err := requireInspector(actor); err != nil {
		return nil, s.fail("conduct_now", err)
	}

	var rec *Inspection
	err := s.withLockTx(ctx, appID, func(ctx context.Context) error {
		app, err := s.loadApp(ctx, appID)
		if err != nil {
			return err
		}
		if app.State != workflow.StateAwaitingInspection {
			return dErrors.New(dErrors.CodeInvalidState, "application is not awaiting inspection")
		}

		now := s.now()
		responsibleID := actor.ID
		rec = &Inspection{
			ID:            domain.NewInspectionID(),
			ApplicationID: appID,
			Date:          now.Format("2006-01-02"),
			ResponsibleID: &responsibleID,
			Notes:         "Conducted without prior planning",
			Type:          TypeUnscheduled,
			Status:        StatusCompleted,
			Checklist:     &checklist,
			CreatedAt:     now,
			UpdatedAt:     now,
			CompletedAt:   &now,
		}
		if err := s.store.Save(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save inspection")
		}

		from := app.State
		s.applyVerdict(app, checklist.Pass(), now)
		if err := s.apps.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update application")
		}
		if err := s.purgePlannedLocked(ctx, appID); err != nil {
			return err
		}
		s.emit(ctx, actor, "conduct_inspection_now", from, app.State, appID, verdictNote(checklist.Pass()))
		return nil
	})
	if err != nil {
		return nil, s.fail("conduct_now", err)
	}
	s.metrics.IncInspection("conduct_now", "ok")
	return rec, nil
}

// Reschedule moves a pending inspection to a new date: a fresh planned record
// of the rescheduled type replaces any existing plans, and the move is
// stamped into meta.
func (s *Service) Reschedule(ctx context.Context, actor workflow.Actor, appID domain.ApplicationID, newDate string) (*Inspection, error) {
	if err := requireInspector(actor); err != nil {
		return nil, s.fail("reschedule", err)
	}
	if err := ValidateDate(newDate); err != nil {
		return nil, s.fail("reschedule", err)
	}

	var rec *Inspection
	err := s.withLockTx(ctx, appID, func(ctx context.Context) error {
		app, err := s.loadApp(ctx, appID)
		if err != nil {
			return err
		}
		if app.State != workflow.StateAwaitingInspection {
			return dErrors.New(dErrors.CodeInvalidState, "application is not awaiting inspection")
		}

		now := s.now()
		records, err := s.store.ListByApplication(ctx, appID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "list inspections")
		}

		responsibleID := actor.ID
		rec = &Inspection{
			ID:            domain.NewInspectionID(),
			ApplicationID: appID,
			Date:          newDate,
			ResponsibleID: &responsibleID,
			Notes:         "Inspection rescheduled",
			Type:          TypeRescheduled,
			Status:        StatusPlanned,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.store.Save(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save inspection")
		}
		if err := s.deletePlannedExcept(ctx, records, rec.ID); err != nil {
			return err
		}

		from := app.State
		app.State = workflow.StateInspectionPlanned
		app.InspectionSignedByInspector = nil
		app.InspectionSignedByApplicant = nil
		app.Meta.InspectionReschedule = &workflow.RescheduleStamp{At: now, By: actor.ID, To: newDate}
		app.UpdatedAt = now
		if err := s.apps.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update application")
		}
		s.emit(ctx, actor, "reschedule_inspection", from, app.State, appID, "new date "+newDate)
		return nil
	})
	if err != nil {
		return nil, s.fail("reschedule", err)
	}
	s.metrics.IncInspection("reschedule", "ok")
	return rec, nil
}

// Sign records a party's signature on the completed inspection report. The
// inspector signs first; each party signs at most once per inspection cycle.
func (s *Service) Sign(ctx context.Context, actor workflow.Actor, appID domain.ApplicationID, signedBy domain.Role) error {
	if signedBy != domain.RoleInspector && signedBy != domain.RoleApplicant {
		return s.fail("sign", dErrors.New(dErrors.CodeValidation, "signedBy must be inspector or applicant"))
	}
	if signedBy == domain.RoleInspector && actor.Role != domain.RoleInspector {
		return s.fail("sign", dErrors.New(dErrors.CodeForbidden, "only an inspector may sign as inspector"))
	}

	err := s.withLockTx(ctx, appID, func(ctx context.Context) error {
		app, err := s.loadApp(ctx, appID)
		if err != nil {
			return err
		}
		if signedBy == domain.RoleApplicant {
			if actor.Role != domain.RoleApplicant || !app.OwnedBy(actor.ID) {
				return dErrors.New(dErrors.CodeForbidden, "only the applicant may sign as applicant")
			}
		}
		if app.State != workflow.StateInspectionCompleted {
			return dErrors.New(dErrors.CodeInvalidState, "only a completed inspection can be signed")
		}

		now := s.now()
		switch signedBy {
		case domain.RoleInspector:
			if app.InspectionSignedByInspector != nil {
				return dErrors.New(dErrors.CodeConflict, "inspection already signed by the inspector")
			}
			app.InspectionSignedByInspector = &now
		case domain.RoleApplicant:
			if app.InspectionSignedByInspector == nil {
				return dErrors.New(dErrors.CodeInvalidState, "the inspector must sign first")
			}
			if app.InspectionSignedByApplicant != nil {
				return dErrors.New(dErrors.CodeConflict, "inspection already signed by the applicant")
			}
			app.InspectionSignedByApplicant = &now
		}
		app.UpdatedAt = now
		if err := s.apps.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update application")
		}
		s.emit(ctx, actor, "sign_inspection", app.State, app.State, appID, "signed by "+signedBy.String())
		return nil
	})
	if err != nil {
		return s.fail("sign", err)
	}
	s.metrics.IncInspection("sign", "ok")
	return nil
}

// Get loads one inspection record.
func (s *Service) Get(ctx context.Context, id domain.InspectionID) (*Inspection, error) {
	return s.loadInspection(ctx, id)
}

// List returns all inspection records, newest last.
func (s *Service) List(ctx context.Context) ([]*Inspection, error) {
	return s.store.List(ctx)
}

// ListByApplication returns the inspection records owned by an application.
func (s *Service) ListByApplication(ctx context.Context, appID domain.ApplicationID) ([]*Inspection, error) {
	return s.store.ListByApplication(ctx, appID)
}

// PurgePlanned removes planned records for an application whose state no
// longer requires inspection. Satisfies workflow.InspectionPurger; also invoked
// after every mutating inspection operation.
func (s *Service) PurgePlanned(ctx context.Context, appID domain.ApplicationID) error {
	app, err := s.apps.Get(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return s.purgePlannedLocked(ctx, appID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load application")
	}
	if app.State.RequiresInspection() {
		return nil
	}
	return s.purgePlannedLocked(ctx, appID)
}

// PurgeAll deletes every inspection record owned by an application,
// regardless of status. Runs when the application itself is deleted.
func (s *Service) PurgeAll(ctx context.Context, appID domain.ApplicationID) error {
	records, err := s.store.ListByApplication(ctx, appID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list inspections")
	}
	for _, rec := range records {
		if err := s.store.Delete(ctx, rec.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete inspection")
		}
	}
	return nil
}

// purgePlannedLocked deletes every planned record for the application. The
// caller holds the application lock or accepts the races of a cleanup path.
func (s *Service) purgePlannedLocked(ctx context.Context, appID domain.ApplicationID) error {
	records, err := s.store.ListByApplication(ctx, appID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list inspections")
	}
	for _, rec := range records {
		if rec.Status != StatusPlanned {
			continue
		}
		if err := s.store.Delete(ctx, rec.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete planned inspection")
		}
	}
	return nil
}

func (s *Service) deletePlannedExcept(ctx context.Context, records []*Inspection, keep domain.InspectionID) error {
	for _, rec := range records {
		if rec.Status != StatusPlanned || rec.ID == keep {
			continue
		}
		if err := s.store.Delete(ctx, rec.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete duplicate planned inspection")
		}
	}
	return nil
}

// applyVerdict resolves the application after an inspection was conducted:
// verdict texts from the checklist result, prior cancellation and denial
// markers cleared.
func (s *Service) applyVerdict(app *workflow.Application, pass bool, now time.Time) {
	result, conclusion, finalText := workflow.InspectionVerdict(pass)
	app.State = workflow.StateInspectionCompleted
	app.InspectionResult = result
	app.InspectionConclusion = conclusion
	app.InspectionFinalText = finalText
	app.Meta.InspectionCancelled = nil
	app.Meta.InspectionDenied = nil
	app.UpdatedAt = now
}

// verdictNote renders the checklist outcome for the audit trail: the same
// final text applyVerdict writes onto the application.
func verdictNote(pass bool) string {
	_, _, finalText := workflow.InspectionVerdict(pass)
	return finalText
}

func (s *Service) loadApp(ctx context.Context, appID domain.ApplicationID) (*workflow.Application, error) {
	app, err := s.apps.Get(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load application")
	}
	return app, nil
}

func (s *Service) loadInspection(ctx context.Context, id domain.InspectionID) (*Inspection, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "inspection not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load inspection")
	}
	return rec, nil
}

func (s *Service) emit(ctx context.Context, actor workflow.Actor, action string, from, to workflow.State, appID domain.ApplicationID, note string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Timestamp: s.now(),
		ActorID:   actor.ID,
		Role:      actor.Role.String(),
		Action:    action,
		FromState: from.String(),
		ToState:   to.String(),
		TargetID:  appID.String(),
		Note:      note,
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func (s *Service) fail(operation string, err error) error {
	s.metrics.IncInspection(operation, "error")
	return err
}

func (s *Service) span(ctx context.Context, name string, appID domain.ApplicationID) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("application_id", appID.String())))
}

func findPlanned(records []*Inspection) *Inspection {
	// Newest planned record wins when residual duplicates exist.
	var found *Inspection
	for _, rec := range records {
		if rec.Status != StatusPlanned {
			continue
		}
		if found == nil || rec.CreatedAt.After(found.CreatedAt) {
			found = rec
		}
	}
	return found
}

func requireInspector(actor workflow.Actor) error {
	if actor.Role != domain.RoleInspector && actor.Role != domain.RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "inspector or admin role required")
	}
	return nil
}
