package httptransport

import (
	"time"

	"certflow/internal/certificate"
	"certflow/internal/directory"
	"certflow/internal/docstore"
	"certflow/internal/inspection"
	"certflow/internal/workflow"
)

// applicationResponse is the wire shape of one application.
type applicationResponse struct {
	ID            string   `json:"id"`
	ProductName   string   `json:"productName"`
	ProductType   string   `json:"productType"`
	ApplicantType string   `json:"applicantType"`
	ApplicantID   string   `json:"applicantId"`
	OperatorID    string   `json:"operatorId,omitempty"`
	State         string   `json:"state"`
	Docs          []string `json:"docs"`

	SamplingData      *samplingDataResponse      `json:"samplingData,omitempty"`
	CertificationData *certificationDataResponse `json:"certificationData,omitempty"`
	SerialPreEval     *serialPreEvalResponse     `json:"serialPreEval,omitempty"`

	RejectionReason string `json:"rejectionReason,omitempty"`
	AnalysisScore   int    `json:"analysisScore,omitempty"`

	OperatorSignedAt            *time.Time `json:"operatorSignedAt,omitempty"`
	ContractSignedAt            *time.Time `json:"contractSignedAt,omitempty"`
	InspectionSignedByInspector *time.Time `json:"inspectionSignedByInspector,omitempty"`
	InspectionSignedByApplicant *time.Time `json:"inspectionSignedByApplicant,omitempty"`

	InspectionResult     string `json:"inspectionResult,omitempty"`
	InspectionConclusion string `json:"inspectionConclusion,omitempty"`
	InspectionFinalText  string `json:"inspectionFinalText,omitempty"`

	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	RegisteredAt *time.Time `json:"registeredAt,omitempty"`
}

type samplingDataResponse struct {
	Code              string    `json:"code"`
	BatchNumber       string    `json:"batchNumber,omitempty"`
	SamplingPlace     string    `json:"samplingPlace"`
	SamplingDate      string    `json:"samplingDate"`
	Quantity          string    `json:"quantity"`
	InspectorName     string    `json:"inspectorName"`
	SerialNumber      string    `json:"serialNumber"`
	StorageConditions string    `json:"storageConditions"`
	SampleCode        string    `json:"sampleCode"`
	CompletedAt       time.Time `json:"completedAt"`
}

type certificationDataResponse struct {
	ProtocolNumber string `json:"protocolNumber"`
	ConductDate    string `json:"conductDate"`
	Organization   string `json:"organization"`
	TestMethod     string `json:"testMethod"`
	Result         string `json:"result"`
	Score          int    `json:"score"`
}

type serialPreEvalResponse struct {
	DocOnlyScore          int   `json:"docOnlyScore"`
	ProductionAuditScore  int   `json:"productionAuditScore"`
	ProductionAttScore    int   `json:"productionAttestationScore"`
	ManagementSystemScore int   `json:"managementSystemScore"`
	AllowedYears          []int `json:"allowedYears"`
	ChosenValidityYears   int   `json:"chosenValidityYears"`
}

func toApplicationResponse(app *workflow.Application) applicationResponse {
	resp := applicationResponse{
		ID:            app.ID.String(),
		ProductName:   app.ProductName,
		ProductType:   app.ProductType.String(),
		ApplicantType: app.ApplicantType,
		ApplicantID:   app.ApplicantID.String(),
		State:         app.State.String(),
		Docs:          make([]string, 0, len(app.Docs)),

		RejectionReason: app.RejectionReason,
		AnalysisScore:   app.AnalysisScore,

		OperatorSignedAt:            app.Meta.OperatorSignedAt,
		ContractSignedAt:            app.ContractSignedAt,
		InspectionSignedByInspector: app.InspectionSignedByInspector,
		InspectionSignedByApplicant: app.InspectionSignedByApplicant,

		InspectionResult:     app.InspectionResult,
		InspectionConclusion: app.InspectionConclusion,
		InspectionFinalText:  app.InspectionFinalText,

		CreatedAt:    app.CreatedAt,
		UpdatedAt:    app.UpdatedAt,
		RegisteredAt: app.RegisteredAt,
	}
	if app.OperatorID != nil {
		resp.OperatorID = app.OperatorID.String()
	}
	for _, doc := range app.Docs {
		resp.Docs = append(resp.Docs, doc.String())
	}
	if sd := app.SamplingData; sd != nil {
		resp.SamplingData = &samplingDataResponse{
			Code:              sd.Code,
			BatchNumber:       sd.BatchNumber,
			SamplingPlace:     sd.SamplingPlace,
			SamplingDate:      sd.SamplingDate,
			Quantity:          sd.Quantity,
			InspectorName:     sd.InspectorName,
			SerialNumber:      sd.SerialNumber,
			StorageConditions: sd.StorageConditions,
			SampleCode:        sd.SampleCode,
			CompletedAt:       sd.CompletedAt,
		}
	}
	if cd := app.CertificationData; cd != nil {
		resp.CertificationData = &certificationDataResponse{
			ProtocolNumber: cd.ProtocolNumber,
			ConductDate:    cd.ConductDate,
			Organization:   cd.Organization,
			TestMethod:     cd.TestMethod,
			Result:         cd.Result,
			Score:          cd.Score,
		}
	}
	if pe := app.Meta.SerialPreEval; pe != nil {
		resp.SerialPreEval = &serialPreEvalResponse{
			DocOnlyScore:          pe.DocOnlyScore,
			ProductionAuditScore:  pe.ProductionAuditScore,
			ProductionAttScore:    pe.ProductionAttScore,
			ManagementSystemScore: pe.ManagementSystemScore,
			AllowedYears:          pe.AllowedYears,
			ChosenValidityYears:   pe.ChosenValidityYears,
		}
	}
	return resp
}

func toApplicationResponses(apps []*workflow.Application) []applicationResponse {
	out := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toApplicationResponse(app))
	}
	return out
}

type testResponse struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Value  int    `json:"value"`
	Result string `json:"result"`
}

func toTestResponses(tests []*workflow.Test) []testResponse {
	out := make([]testResponse, 0, len(tests))
	for _, t := range tests {
		out = append(out, testResponse{
			ID:     t.ID.String(),
			Key:    t.Key,
			Name:   t.Name,
			Value:  t.Value,
			Result: string(t.Result),
		})
	}
	return out
}

type certificateResponse struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	Number        string    `json:"number"`
	ProductName   string    `json:"productName"`
	ProductType   string    `json:"productType"`
	ValidityYears int       `json:"validityYears"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Body          string    `json:"body"`
}

func toCertificateResponse(cert *certificate.Certificate) certificateResponse {
	return certificateResponse{
		ID:            cert.ID.String(),
		ApplicationID: cert.ApplicationID.String(),
		Number:        cert.Number,
		ProductName:   cert.ProductName,
		ProductType:   cert.ProductType.String(),
		ValidityYears: cert.ValidityYears,
		IssuedAt:      cert.IssuedAt,
		ExpiresAt:     cert.ExpiresAt,
		Body:          cert.Body,
	}
}

type inspectionResponse struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"applicationId"`
	Date          string     `json:"date,omitempty"`
	ResponsibleID string     `json:"responsibleId,omitempty"`
	Responsible   string     `json:"responsible,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Type          string     `json:"type"`
	OrderSigned   bool       `json:"orderSigned"`
	Status        string     `json:"status"`
	Checklist     *checklist `json:"checklist,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

type checklist struct {
	DocumentsOk bool `json:"documentsOk"`
	ProcessOk   bool `json:"processOk"`
	ProductOk   bool `json:"productOk"`
}

func toInspectionResponse(rec *inspection.Inspection) inspectionResponse {
	resp := inspectionResponse{
		ID:            rec.ID.String(),
		ApplicationID: rec.ApplicationID.String(),
		Date:          rec.Date,
		Responsible:   rec.Responsible,
		Notes:         rec.Notes,
		Type:          rec.Type.String(),
		OrderSigned:   rec.OrderSigned,
		Status:        rec.Status.String(),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		CompletedAt:   rec.CompletedAt,
	}
	if rec.ResponsibleID != nil {
		resp.ResponsibleID = rec.ResponsibleID.String()
	}
	if rec.Checklist != nil {
		resp.Checklist = &checklist{
			DocumentsOk: rec.Checklist.DocumentsOk,
			ProcessOk:   rec.Checklist.ProcessOk,
			ProductOk:   rec.Checklist.ProductOk,
		}
	}
	return resp
}

func toInspectionResponses(recs []*inspection.Inspection) []inspectionResponse {
	out := make([]inspectionResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toInspectionResponse(rec))
	}
	return out
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func toUserResponse(user *directory.User) userResponse {
	return userResponse{
		ID:          user.ID.String(),
		Email:       user.Email,
		FullName:    user.FullName,
		Role:        user.Role.String(),
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

type fileResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
	Data        []byte    `json:"data,omitempty"`
}

func toFileResponse(file *docstore.File, includeData bool) fileResponse {
	resp := fileResponse{
		ID:          file.ID.String(),
		Name:        file.Name,
		ContentType: file.ContentType,
		Size:        file.Size,
		UploadedBy:  file.UploadedBy.String(),
		UploadedAt:  file.UploadedAt,
	}
	if includeData {
		resp.Data = file.Data
	}
	return resp
}
