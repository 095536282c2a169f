package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"certflow/internal/certificate"
	"certflow/internal/workflow/metrics"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	audit "certflow/pkg/platform/audit"
	"certflow/pkg/platform/sentinel"
	txcontext "certflow/pkg/platform/tx"
)

var tracer = otel.Tracer("certflow/workflow")

// AuditPublisher records workflow actions. Satisfied by the audit publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// InspectionPurger removes inspection records for an application: stale
// planned ones after a state change, all of them when the application is
// deleted. Implemented by the inspection service; wired after construction
// because the two services reference each other.
type InspectionPurger interface {
	PurgePlanned(ctx context.Context, appID domain.ApplicationID) error
	PurgeAll(ctx context.Context, appID domain.ApplicationID) error
}

// FileRemover deletes stored document records. Satisfied by the doc store.
type FileRemover interface {
	Delete(ctx context.Context, id domain.FileID) error
}

// TxRunner brackets a mutation in a storage transaction so the state write,
// the derived records and the audit append commit together. SQL wiring uses
// the transaction runner; memory wiring runs the mutation directly.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ScoreSource supplies the value for a seeded test key. Production wiring
// uses a randomized source; tests inject a deterministic one.
type ScoreSource func(key string) int

// Service owns the application lifecycle. Every command runs under the
// per-application lock: guards are evaluated against freshly loaded state and
// the mutation is written back in one critical section, so no partial
// application state is ever observable.
type Service struct {
	store    Store
	locker   Locker
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	certs    certificate.Store
	renderer certificate.Renderer
	numbers  certificate.NumberGenerator
	purger   InspectionPurger
	files    FileRemover
	txr      TxRunner
	scores   ScoreSource
	now      func() time.Time
}

// Deps carries the collaborators a Service needs. Metrics, the purger, the
// file remover, the transaction runner and the score source are optional;
// everything else is required.
type Deps struct {
	Store       Store
	Locker      Locker
	Audit       AuditPublisher
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Certs       certificate.Store
	Renderer    certificate.Renderer
	Numbers     certificate.NumberGenerator
	Files       FileRemover
	Tx          TxRunner
	ScoreSource ScoreSource
	Now         func() time.Time
}

func NewService(deps Deps) *Service {
	s := &Service{
		store:    deps.Store,
		locker:   deps.Locker,
		auditor:  deps.Audit,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		certs:    deps.Certs,
		renderer: deps.Renderer,
		numbers:  deps.Numbers,
		files:    deps.Files,
		txr:      deps.Tx,
		scores:   deps.ScoreSource,
		now:      deps.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.txr == nil {
		s.txr = txcontext.Passthrough{}
	}
	if s.numbers == nil {
		s.numbers = certificate.NewNumber
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// SetPurger wires the inspection-side purge hook. Must be called before the
// service starts executing commands.
func (s *Service) SetPurger(p InspectionPurger) { s.purger = p }

// withLockTx serializes on the application and runs the mutation inside one
// storage transaction: guards see fresh state, and a failure anywhere in fn
// leaves no partial write behind.
func (s *Service) withLockTx(ctx context.Context, id domain.ApplicationID, fn func(ctx context.Context) error) error {
	return s.locker.WithLock(ctx, id, func(ctx context.Context) error {
		return s.txr.RunInTx(ctx, fn)
	})
}

// CreateApplication opens a new draft for the applicant. Missing fields fall
// back to defaults rather than failing: a draft is always repairable.
func (s *Service) CreateApplication(ctx context.Context, actor Actor, productName, productType, applicantType string) (*Application, error) {
	ctx, span := tracer.Start(ctx, "workflow.CreateApplication")
	defer span.End()

	if actor.Role != domain.RoleApplicant {
		return nil, dErrors.New(dErrors.CodeForbidden, "only applicants can create applications")
	}
	if productName == "" {
		productName = "Untitled product"
	}
	pt := domain.ProductSingle
	if productType != "" {
		parsed, err := domain.ParseProductType(productType)
		if err != nil {
			return nil, err
		}
		pt = parsed
	}
	if applicantType == "" {
		applicantType = "manufacturer"
	}

	now := s.now()
	app := &Application{
		ID:            domain.NewApplicationID(),
		ProductName:   productName,
		ProductType:   pt,
		ApplicantType: applicantType,
		ApplicantID:   actor.ID,
		State:         StateDraft,
		Docs:          []domain.FileID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "create application")
		}
		s.emit(ctx, actor, "create_application", "", StateDraft, app.ID.String(), "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncCommand("create_application", "ok")
	s.logger.InfoContext(ctx, "application created",
		"application_id", app.ID.String(), "product_type", pt.String())
	return app, nil
}

// Get loads one application. Applicants may only read their own.
func (s *Service) Get(ctx context.Context, actor Actor, id domain.ApplicationID) (*Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleApplicant && !app.OwnedBy(actor.ID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not the owner of this application")
	}
	return app, nil
}

// List returns applications visible to the actor: applicants see their own,
// staff and inspectors see everything.
func (s *Service) List(ctx context.Context, actor Actor) ([]*Application, error) {
	if actor.Role == domain.RoleApplicant {
		return s.store.ListByApplicant(ctx, actor.ID)
	}
	return s.store.List(ctx)
}

// ListTests returns the scored test records owned by an application.
func (s *Service) ListTests(ctx context.Context, actor Actor, id domain.ApplicationID) ([]*Test, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.ListTests(ctx, id)
}

// AttachDocument links an already stored file to a draft application.
func (s *Service) AttachDocument(ctx context.Context, actor Actor, id domain.ApplicationID, fileID domain.FileID) error {
	return s.withLockTx(ctx, id, func(ctx context.Context) error {
		app, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role == domain.RoleApplicant && !app.OwnedBy(actor.ID) {
			return dErrors.New(dErrors.CodeForbidden, "not the owner of this application")
		}
		app.Docs = append(app.Docs, fileID)
		app.UpdatedAt = s.now()
		if err := s.store.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "attach document")
		}
		return nil
	})
}

// Delete removes an application together with everything it owns: test
// records, inspection records, the issued certificate, and the stored
// document files. Admins may always delete; applicants may delete their own
// drafts only.
func (s *Service) Delete(ctx context.Context, actor Actor, id domain.ApplicationID) error {
	return s.withLockTx(ctx, id, func(ctx context.Context) error {
		app, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		switch actor.Role {
		case domain.RoleAdmin:
		case domain.RoleApplicant:
			if !app.OwnedBy(actor.ID) {
				return dErrors.New(dErrors.CodeForbidden, "not the owner of this application")
			}
			if app.State != StateDraft {
				return dErrors.New(dErrors.CodeInvalidState, "only draft applications can be deleted")
			}
		default:
			return dErrors.New(dErrors.CodeForbidden, "role not permitted to delete applications")
		}
		if err := s.store.Delete(ctx, id); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete application")
		}
		if s.purger != nil {
			if err := s.purger.PurgeAll(ctx, id); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "delete inspections")
			}
		}
		if s.certs != nil {
			if err := s.certs.DeleteByApplication(ctx, id); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "delete certificate")
			}
		}
		if s.files != nil {
			for _, fileID := range app.Docs {
				if err := s.files.Delete(ctx, fileID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.Wrap(err, dErrors.CodeInternal, "delete document")
				}
			}
		}
		s.emit(ctx, actor, "delete_application", app.State, "", id.String(), "")
		return nil
	})
}

// Execute runs one named command against the application. Dispatch is an
// exhaustive switch over the closed command set; every handler re-checks
// role, state and preconditions regardless of what the gate advertised.
func (s *Service) Execute(ctx context.Context, actor Actor, id domain.ApplicationID, cmd Command, p Params) (*Result, error) {
	ctx, span := tracer.Start(ctx, "workflow.Execute",
		trace.WithAttributes(
			attribute.String("command", cmd.String()),
			attribute.String("application_id", id.String()),
			attribute.String("role", actor.Role.String()),
		),
	)
	defer span.End()

	start := time.Now()
	var result *Result
	err := s.withLockTx(ctx, id, func(ctx context.Context) error {
		app, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		from := app.State

		res, note, err := s.dispatch(ctx, actor, app, cmd, p)
		if err != nil {
			return err
		}

		app.UpdatedAt = s.now()
		if err := s.store.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update application")
		}
		if res.Next == "" {
			res.Next = app.State
		}

		s.emit(ctx, actor, cmd.String(), from, app.State, id.String(), note)
		if from != app.State {
			s.metrics.IncTransition(from.String(), app.State.String())
		}
		if s.purger != nil && !app.State.RequiresInspection() {
			if err := s.purger.PurgePlanned(ctx, id); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "purge planned inspections")
			}
		}

		result = res
		return nil
	})
	s.metrics.ObserveCommand(start)
	if err != nil {
		s.metrics.IncCommand(cmd.String(), "error")
		span.RecordError(err)
		return nil, err
	}
	s.metrics.IncCommand(cmd.String(), "ok")
	s.logger.InfoContext(ctx, "command executed",
		"command", cmd.String(), "application_id", id.String(), "next", result.Next.String())
	return result, nil
}

// dispatch routes a command to its handler. The switch is exhaustive over
// the command set; inspection-surface commands are rejected here because they
// run through the inspection service.
func (s *Service) dispatch(ctx context.Context, actor Actor, app *Application, cmd Command, p Params) (*Result, string, error) {
	switch cmd {
	case CommandSubmitDocs:
		return s.submitDocs(actor, app)
	case CommandAnalyzeDocs:
		return s.analyzeDocs(ctx, actor, app, p)
	case CommandPreTestsDecision:
		return s.preTestsDecision(actor, app, p)
	case CommandSerialPreEval:
		return s.serialPreEval(actor, app, p)
	case CommandInputSamplingData:
		return s.inputSamplingData(actor, app, p)
	case CommandContinueToTests:
		return s.continueToTests(actor, app)
	case CommandRunCertificationTests:
		return s.runCertificationTests(ctx, actor, app)
	case CommandInputCertificationData:
		return s.inputCertificationData(actor, app, p)
	case CommandIssueProtocols:
		return s.issueProtocols(actor, app)
	case CommandAnalyzeResults:
		return s.analyzeResults(ctx, actor, app, p)
	case CommandSubmitFixes:
		return s.submitFixes(actor, app)
	case CommandGenerateCertificate:
		return s.generateCertificate(ctx, actor, app, p)
	case CommandContinueProcess:
		return s.continueProcess(actor, app)
	case CommandOperatorSignContract:
		return s.operatorSignContract(actor, app)
	case CommandSignContract:
		return s.signContract(actor, app)
	case CommandRegister:
		return s.register(actor, app)
	case CommandRequestReinspection:
		return s.requestReinspection(actor, app)
	case CommandAdminForce:
		return s.adminForce(actor, app, p)
	case CommandPlanInspection, CommandCancelInspection, CommandCompleteInspection,
		CommandDenyInspection, CommandRescheduleInspection, CommandConductInspectionNow,
		CommandSignInspection:
		return nil, "", dErrors.New(dErrors.CodeBadRequest, "inspection commands run through the inspection endpoints")
	default:
		return nil, "", dErrors.New(dErrors.CodeValidation, "unknown command")
	}
}

func (s *Service) load(ctx context.Context, id domain.ApplicationID) (*Application, error) {
	app, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load application")
	}
	return app, nil
}

func (s *Service) emit(ctx context.Context, actor Actor, action string, from, to State, targetID, note string) {
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
		TargetID:  targetID,
		Note:      note,
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func requireStaff(actor Actor) error {
	if !actor.Role.IsStaff() {
		return dErrors.New(dErrors.CodeForbidden, "operator or admin role required")
	}
	return nil
}

func requireOwner(actor Actor, app *Application) error {
	if actor.Role != domain.RoleApplicant {
		return dErrors.New(dErrors.CodeForbidden, "applicant role required")
	}
	if !app.OwnedBy(actor.ID) {
		return dErrors.New(dErrors.CodeForbidden, "not the owner of this application")
	}
	return nil
}

func requireState(app *Application, states ...State) error {
	for _, st := range states {
		if app.State == st {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvalidState, "command not valid in state "+app.State.String())
}
