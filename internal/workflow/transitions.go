package workflow

import (
	"context"
	"fmt"
	"strings"

	"certflow/internal/certificate"
	"certflow/internal/scoring"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
)

func (s *Service) submitDocs(actor Actor, app *Application) (*Result, string, error) {
	if err := requireOwner(actor, app); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateDraft, StateDocCorrections); err != nil {
		return nil, "", err
	}
	if len(app.Docs) == 0 {
		return nil, "", dErrors.New(dErrors.CodeValidation, "at least one document is required")
	}
	app.State = StateSubmittedDocs
	return &Result{Next: StateSubmittedDocs}, "", nil
}

func (s *Service) analyzeDocs(ctx context.Context, actor Actor, app *Application, p Params) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateSubmittedDocs, StateDocCorrections, StateDocAnalysis); err != nil {
		return nil, "", err
	}
	if p.Score == nil {
		return nil, "", dErrors.New(dErrors.CodeValidation, "score is required")
	}
	score := *p.Score
	if err := scoring.ValidateScore(score); err != nil {
		return nil, "", err
	}

	if err := s.upsertTest(ctx, app, scoring.TestKeyDocAnalysis, "Document analysis", score); err != nil {
		return nil, "", err
	}

	if scoring.DocAnalysisPassed(score) {
		app.State = StatePreTestsDecision
		operatorID := actor.ID
		app.OperatorID = &operatorID
		app.RejectionReason = ""
		return &Result{Next: StatePreTestsDecision, Score: score}, fmt.Sprintf("score %d", score), nil
	}

	app.State = StateDocCorrections
	app.RejectionReason = p.RejectionReason
	if app.RejectionReason == "" {
		app.RejectionReason = "Negative documentation review"
	}
	return &Result{Next: StateDocCorrections, Score: score}, fmt.Sprintf("score %d", score), nil
}

func (s *Service) preTestsDecision(actor Actor, app *Application, p Params) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StatePreTestsDecision); err != nil {
		return nil, "", err
	}
	switch p.Decision {
	case DecisionCertificationTests:
		app.State = StateCertificationTests
		return &Result{Next: StateCertificationTests}, string(p.Decision), nil
	case DecisionSampling:
		if app.ProductType == domain.ProductSerial {
			// Serial products may not enter sampling until the four-criterion
			// evaluation is saved with a positive validity choice.
			if app.Meta.SerialPreEval == nil || app.Meta.SerialPreEval.ChosenValidityYears == 0 {
				return nil, "", dErrors.New(dErrors.CodeInvalidState,
					"serial production requires a saved pre-evaluation before sampling")
			}
		}
		app.State = StateSamplingAndTests
		return &Result{Next: StateSamplingAndTests}, string(p.Decision), nil
	default:
		return nil, "", dErrors.New(dErrors.CodeValidation, "decision must be certification_tests or sampling")
	}
}

func (s *Service) serialPreEval(actor Actor, app *Application, p Params) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StatePreTestsDecision); err != nil {
		return nil, "", err
	}
	if app.ProductType != domain.ProductSerial {
		return nil, "", dErrors.New(dErrors.CodeValidation, "pre-evaluation applies to serial production only")
	}
	if p.PreEvalScores == nil {
		return nil, "", dErrors.New(dErrors.CodeValidation, "all four scores are required")
	}
	allowed, err := scoring.EvaluateSerialPreEval(*p.PreEvalScores, p.ChosenYears)
	if err != nil {
		return nil, "", err
	}
	app.Meta.SerialPreEval = &SerialPreEval{
		DocOnlyScore:          p.PreEvalScores.DocOnly,
		ProductionAuditScore:  p.PreEvalScores.ProductionAudit,
		ProductionAttScore:    p.PreEvalScores.ProductionAttestation,
		ManagementSystemScore: p.PreEvalScores.ManagementSystem,
		AllowedYears:          allowed,
		ChosenValidityYears:   p.ChosenYears,
		SavedAt:               s.now(),
		SavedBy:               actor.ID,
	}
	note := fmt.Sprintf("years %d; scores %d/%d/%d/%d", p.ChosenYears,
		p.PreEvalScores.DocOnly, p.PreEvalScores.ProductionAudit,
		p.PreEvalScores.ProductionAttestation, p.PreEvalScores.ManagementSystem)
	return &Result{Next: app.State, AllowedYears: allowed}, note, nil
}

// samplingMissing returns the names of empty mandatory sampling fields.
// BatchNumber is the one optional field: single-series samples have no batch.
func samplingMissing(in *SamplingInput) []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"code", in.Code},
		{"serialNumber", in.SerialNumber},
		{"quantity", in.Quantity},
		{"storageConditions", in.StorageConditions},
		{"sampleCode", in.SampleCode},
		{"samplingDate", in.SamplingDate},
		{"samplingPlace", in.SamplingPlace},
		{"inspectorName", in.InspectorName},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func (s *Service) inputSamplingData(actor Actor, app *Application, p Params) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateSamplingAndTests); err != nil {
		return nil, "", err
	}
	if p.Sampling == nil {
		return nil, "", dErrors.New(dErrors.CodeValidation, "sampling data is required")
	}
	if missing := samplingMissing(p.Sampling); len(missing) > 0 {
		return nil, "", dErrors.New(dErrors.CodeValidation,
			"missing required fields: "+strings.Join(missing, ", "))
	}
	app.SamplingData = &SamplingData{
		Code:              p.Sampling.Code,
		BatchNumber:       p.Sampling.BatchNumber,
		SamplingPlace:     p.Sampling.SamplingPlace,
		SamplingDate:      p.Sampling.SamplingDate,
		Quantity:          p.Sampling.Quantity,
		InspectorName:     p.Sampling.InspectorName,
		SerialNumber:      p.Sampling.SerialNumber,
		StorageConditions: p.Sampling.StorageConditions,
		SampleCode:        p.Sampling.SampleCode,
		CompletedAt:       s.now(),
	}
	return &Result{Next: app.State}, "sample code " + p.Sampling.SampleCode, nil
}

func (s *Service) continueToTests(actor Actor, app *Application) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateSamplingAndTests); err != nil {
		return nil, "", err
	}
	if !app.HasSamplingData() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "sampling data must be entered first")
	}
	app.State = StateCertificationTests
	return &Result{Next: StateCertificationTests}, "", nil
}

// testSuite returns the evaluations a product type undergoes.
func testSuite(pt domain.ProductType) []struct{ Key, Name string } {
	base := []struct{ Key, Name string }{
		{scoring.TestKeyDocAnalysis, "Document analysis"},
	}
	switch pt {
	case domain.ProductBatch:
		return append(base, struct{ Key, Name string }{scoring.TestKeyProductionAudit, "Production audit"})
	case domain.ProductSerial:
		return append(base,
			struct{ Key, Name string }{scoring.TestKeyProductionAttestation, "Production attestation"},
			struct{ Key, Name string }{scoring.TestKeyManagementSystem, "Management system"})
	default:
		return base
	}
}

func (s *Service) runCertificationTests(ctx context.Context, actor Actor, app *Application) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateCertificationTests); err != nil {
		return nil, "", err
	}
	var created []Test
	for _, def := range testSuite(app.ProductType) {
		value := 0
		if s.scores != nil {
			value = s.scores(def.Key)
		}
		if err := s.upsertTest(ctx, app, def.Key, def.Name, value); err != nil {
			return nil, "", err
		}
		created = append(created, Test{
			ApplicationID: app.ID,
			Key:           def.Key,
			Name:          def.Name,
			Value:         value,
			Result:        testResultFor(value),
		})
	}
	app.State = StateTestProtocols
	return &Result{Next: StateTestProtocols, Tests: created},
		fmt.Sprintf("seeded %d tests", len(created)), nil
}

func (s *Service) inputCertificationData(actor Actor, app *Application, p Params) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateTestProtocols); err != nil {
		return nil, "", err
	}
	if p.Certification == nil {
		return nil, "", dErrors.New(dErrors.CodeValidation, "certification data is required")
	}
	if err := scoring.ValidateScore(p.Certification.Score); err != nil {
		return nil, "", err
	}
	result := p.Certification.Result
	if result == "" {
		result = "conforms"
	}
	app.CertificationData = &CertificationData{
		ProtocolNumber: p.Certification.ProtocolNumber,
		ConductDate:    p.Certification.ConductDate,
		Organization:   p.Certification.Organization,
		TestMethod:     p.Certification.TestMethod,
		Result:         result,
		Score:          p.Certification.Score,
		CompletedAt:    s.now(),
	}
	return &Result{Next: app.State}, fmt.Sprintf("score %d", p.Certification.Score), nil
}

func (s *Service) issueProtocols(actor Actor, app *Application) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateTestProtocols); err != nil {
		return nil, "", err
	}
	if !app.HasCertificationData() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "certification test data must be entered first")
	}
	app.State = StateTestsAnalysis
	return &Result{Next: StateTestsAnalysis}, "", nil
}

func (s *Service) analyzeResults(ctx context.Context, actor Actor, app *Application, p Params) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateTestsAnalysis); err != nil {
		return nil, "", err
	}
	tests, err := s.store.ListTests(ctx, app.ID)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "list tests")
	}
	if len(tests) == 0 {
		return nil, "", dErrors.New(dErrors.CodeValidation, "no test records to analyze")
	}

	scores := make([]scoring.TestScore, 0, len(tests))
	for _, t := range tests {
		scores = append(scores, scoring.TestScore{Key: t.Key, Value: t.Value})
	}
	var cd *scoring.CertificationData
	if app.CertificationData != nil {
		cd = &scoring.CertificationData{
			Result: app.CertificationData.Result,
			Score:  app.CertificationData.Score,
		}
	}
	outcome := scoring.AnalyzeResults(scores, cd)

	app.AnalysisScore = outcome.Score
	if outcome.Pass {
		app.State = StateApproved
		app.RejectionReason = ""
		return &Result{Next: StateApproved, Score: outcome.Score},
			fmt.Sprintf("score %d", outcome.Score), nil
	}
	// Failure loops back to certification tests, never forward.
	app.State = StateCertificationTests
	app.RejectionReason = p.RejectionReason
	if app.RejectionReason == "" {
		app.RejectionReason = "Negative test results"
	}
	return &Result{Next: StateCertificationTests, Score: outcome.Score},
		fmt.Sprintf("score %d", outcome.Score), nil
}

func (s *Service) submitFixes(actor Actor, app *Application) (*Result, string, error) {
	if err := requireOwner(actor, app); err != nil {
		return nil, "", err
	}
	switch app.State {
	case StateDocCorrections:
		app.State = StateSubmittedDocs
		return &Result{Next: StateSubmittedDocs}, "", nil
	case StateNonconformities:
		app.State = StateCertificationTests
		return &Result{Next: StateCertificationTests}, "", nil
	default:
		return nil, "", dErrors.New(dErrors.CodeInvalidState, "no fixes expected in state "+app.State.String())
	}
}

func (s *Service) generateCertificate(ctx context.Context, actor Actor, app *Application, p Params) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateApproved, StateCertificateGenerated); err != nil {
		return nil, "", err
	}
	if !app.HasCertificationData() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "certification test data must be entered first")
	}

	tests, err := s.store.ListTests(ctx, app.ID)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "list tests")
	}
	keys := make([]string, 0, len(tests))
	for _, t := range tests {
		keys = append(keys, t.Key)
	}

	years := p.ValidityYears
	if years == 0 {
		years = scoring.RecommendedValidity(app.ProductType, keys)
	}
	// A saved serial pre-evaluation choice pins the validity regardless of
	// what the caller asked for.
	if app.ProductType == domain.ProductSerial && app.HasSerialPreEval() {
		years = app.Meta.SerialPreEval.ChosenValidityYears
	}

	cert := certificate.Issue(app.ID, app.ProductName, app.ProductType, years, s.numbers(), s.now())
	if s.renderer != nil {
		cert.Body = s.renderer.Render(cert)
	}
	if err := s.certs.Save(ctx, cert); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "save certificate")
	}

	app.State = StateCertificateGenerated
	return &Result{Next: StateCertificateGenerated, Certificate: cert}, cert.Number, nil
}

func (s *Service) continueProcess(actor Actor, app *Application) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateCertificateGenerated); err != nil {
		return nil, "", err
	}
	if app.ProductType == domain.ProductSingle {
		return nil, "", dErrors.New(dErrors.CodeValidation, "single products do not require a contract")
	}
	app.State = StateContractSigned
	return &Result{Next: StateContractSigned}, "", nil
}

func (s *Service) operatorSignContract(actor Actor, app *Application) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateContractSigned); err != nil {
		return nil, "", err
	}
	if app.Meta.OperatorSignedAt != nil {
		return nil, "", dErrors.New(dErrors.CodeConflict, "contract already signed by the operator")
	}
	now := s.now()
	app.Meta.OperatorSignedAt = &now
	return &Result{Next: app.State}, "", nil
}

func (s *Service) signContract(actor Actor, app *Application) (*Result, string, error) {
	if err := requireOwner(actor, app); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateContractSigned); err != nil {
		return nil, "", err
	}
	if app.Meta.OperatorSignedAt == nil {
		return nil, "", dErrors.New(dErrors.CodeInvalidState, "the operator must sign first")
	}
	if app.ContractSignedAt != nil {
		return nil, "", dErrors.New(dErrors.CodeConflict, "contract already signed by the applicant")
	}
	now := s.now()
	app.ContractSignedAt = &now
	return &Result{Next: app.State}, "", nil
}

func (s *Service) register(actor Actor, app *Application) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if app.ProductType == domain.ProductSingle {
		if err := requireState(app, StateCertificateGenerated); err != nil {
			return nil, "", err
		}
	} else {
		if err := requireState(app, StateContractSigned); err != nil {
			return nil, "", err
		}
		if app.Meta.OperatorSignedAt == nil || app.ContractSignedAt == nil {
			return nil, "", dErrors.New(dErrors.CodeInvalidState,
				"both the operator and the applicant must sign the contract")
		}
	}

	next := StateClosed
	if app.ProductType == domain.ProductSerial {
		// Serial certificates stay under periodic inspection instead of
		// closing out.
		next = StateAwaitingInspection
	}
	now := s.now()
	app.State = next
	app.RegisteredAt = &now
	return &Result{Next: next}, "", nil
}

func (s *Service) requestReinspection(actor Actor, app *Application) (*Result, string, error) {
	if err := requireStaff(actor); err != nil {
		return nil, "", err
	}
	if err := requireState(app, StateInspectionDenied, StateInspectionCompleted); err != nil {
		return nil, "", err
	}
	app.State = StateAwaitingInspection
	app.InspectionSignedByInspector = nil
	app.InspectionSignedByApplicant = nil
	app.Meta.ReinspectionRequest = &ActorStamp{At: s.now(), By: actor.ID}
	return &Result{Next: StateAwaitingInspection}, "", nil
}

func (s *Service) adminForce(actor Actor, app *Application, p Params) (*Result, string, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, "", dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	if !p.ToState.IsValid() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "unknown target state")
	}
	app.State = p.ToState
	app.Meta.AdminForced = &ActorStamp{At: s.now(), By: actor.ID}
	return &Result{Next: p.ToState}, p.Reason, nil
}

func (s *Service) upsertTest(ctx context.Context, app *Application, key, name string, value int) error {
	t := &Test{
		ID:            domain.NewTestID(),
		ApplicationID: app.ID,
		Key:           key,
		Name:          name,
		Value:         value,
		Result:        testResultFor(value),
		CreatedAt:     s.now(),
		UpdatedAt:     s.now(),
	}
	if err := s.store.UpsertTest(ctx, t); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save test record")
	}
	return nil
}

func testResultFor(value int) TestResult {
	if value >= scoring.PassThreshold {
		return TestPass
	}
	return TestFail
}
