package workflow

import (
	"time"

	"certflow/pkg/domain"
)

// Application is the aggregate root of one certification request. Tests,
// certificates, and inspections are owned by it through their applicationId
// and are destroyed with it.
type Application struct {
	ID            domain.ApplicationID
	ProductName   string
	ProductType   domain.ProductType
	ApplicantType string
	ApplicantID   domain.UserID
	OperatorID    *domain.UserID // assigned on the first passing document analysis
	State         State

	Docs []domain.FileID

	// Set-once-then-amendable records; nil until the workflow enters the
	// step that produces them, never partially populated.
	SamplingData      *SamplingData
	CertificationData *CertificationData

	Meta Meta

	RejectionReason string
	AnalysisScore   int

	// Contract signatures. The operator signature lives in Meta; the
	// applicant signature is only valid after it.
	ContractSignedAt *time.Time

	// Inspection signatures for the current inspection cycle.
	InspectionSignedByInspector *time.Time
	InspectionSignedByApplicant *time.Time

	// Derived verdict texts from the last completed inspection.
	InspectionResult     string
	InspectionConclusion string
	InspectionFinalText  string

	CreatedAt    time.Time
	UpdatedAt    time.Time
	RegisteredAt *time.Time
}

// ActorStamp records who did something and when.
type ActorStamp struct {
	At time.Time
	By domain.UserID
}

// RescheduleStamp records an inspection date move.
type RescheduleStamp struct {
	At time.Time
	By domain.UserID
	To string // YYYY-MM-DD
}

// DenialStamp records an inspection denial and its stated reason.
type DenialStamp struct {
	At     time.Time
	By     domain.UserID
	Reason string
}

// Meta is the closed set of optional per-application markers. Each concern is
// an explicitly typed field so a missing case is a compile error, not a
// silent nil map lookup.
type Meta struct {
	OperatorSignedAt     *time.Time
	SerialPreEval        *SerialPreEval
	InspectionCancelled  *ActorStamp
	InspectionDenied     *DenialStamp
	ReinspectionRequest  *ActorStamp
	InspectionReschedule *RescheduleStamp
	AdminForced          *ActorStamp
}

// SerialPreEval is the saved four-criterion evaluation that gates sampling
// for serial products and pins the certificate validity.
type SerialPreEval struct {
	DocOnlyScore          int
	ProductionAuditScore  int
	ProductionAttScore    int
	ManagementSystemScore int
	AllowedYears          []int
	ChosenValidityYears   int
	SavedAt               time.Time
	SavedBy               domain.UserID
}

// SamplingData is the manually entered sample selection record. All fields
// except BatchNumber are required on input.
type SamplingData struct {
	Code              string
	BatchNumber       string
	SamplingPlace     string
	SamplingDate      string
	Quantity          string
	InspectorName     string
	SerialNumber      string
	StorageConditions string
	SampleCode        string
	CompletedAt       time.Time
}

// CertificationData is the manually entered certification-test record used by
// the results analysis and required before a certificate can be generated.
type CertificationData struct {
	ProtocolNumber string
	ConductDate    string
	Organization   string
	TestMethod     string
	Result         string
	Score          int
	CompletedAt    time.Time
}

// TestResult is the pass/fail marker on a Test record.
type TestResult string

const (
	TestPass TestResult = "pass"
	TestFail TestResult = "fail"
)

// Test is one scored evaluation owned by an application. Tests are never
// deleted; re-running the same scoring step updates the record in place
// (idempotent by key).
type Test struct {
	ID            domain.TestID
	ApplicationID domain.ApplicationID
	Key           string
	Name          string
	Value         int
	Result        TestResult
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy so store reads never alias store-owned memory.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Docs = append([]domain.FileID(nil), a.Docs...)
	cp.OperatorID = cloneUserID(a.OperatorID)
	cp.ContractSignedAt = cloneTime(a.ContractSignedAt)
	cp.InspectionSignedByInspector = cloneTime(a.InspectionSignedByInspector)
	cp.InspectionSignedByApplicant = cloneTime(a.InspectionSignedByApplicant)
	cp.RegisteredAt = cloneTime(a.RegisteredAt)
	if a.SamplingData != nil {
		sd := *a.SamplingData
		cp.SamplingData = &sd
	}
	if a.CertificationData != nil {
		cd := *a.CertificationData
		cp.CertificationData = &cd
	}
	cp.Meta = a.Meta.clone()
	return &cp
}

func (m Meta) clone() Meta {
	cp := m
	cp.OperatorSignedAt = cloneTime(m.OperatorSignedAt)
	if m.SerialPreEval != nil {
		pe := *m.SerialPreEval
		pe.AllowedYears = append([]int(nil), m.SerialPreEval.AllowedYears...)
		cp.SerialPreEval = &pe
	}
	if m.InspectionCancelled != nil {
		v := *m.InspectionCancelled
		cp.InspectionCancelled = &v
	}
	if m.InspectionDenied != nil {
		v := *m.InspectionDenied
		cp.InspectionDenied = &v
	}
	if m.ReinspectionRequest != nil {
		v := *m.ReinspectionRequest
		cp.ReinspectionRequest = &v
	}
	if m.InspectionReschedule != nil {
		v := *m.InspectionReschedule
		cp.InspectionReschedule = &v
	}
	if m.AdminForced != nil {
		v := *m.AdminForced
		cp.AdminForced = &v
	}
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUserID(id *domain.UserID) *domain.UserID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// HasSamplingData reports whether the sampling record has been entered.
func (a *Application) HasSamplingData() bool { return a.SamplingData != nil }

// HasCertificationData reports whether the certification record has been
// entered.
func (a *Application) HasCertificationData() bool { return a.CertificationData != nil }

// HasSerialPreEval reports whether a usable (non-zero) pre-evaluation choice
// has been saved.
func (a *Application) HasSerialPreEval() bool {
	return a.Meta.SerialPreEval != nil && a.Meta.SerialPreEval.ChosenValidityYears > 0
}

// OwnedBy reports whether the given user is the applicant on this
// application.
func (a *Application) OwnedBy(userID domain.UserID) bool {
	return a.ApplicantID == userID
}
