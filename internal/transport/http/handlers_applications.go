package httptransport

import (
	"errors"
	"net/http"

	"certflow/internal/scoring"
	"certflow/internal/workflow"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/sentinel"
)

type createApplicationRequest struct {
	ProductName   string `json:"productName"`
	ProductType   string `json:"productType"`
	ApplicantType string `json:"applicantType"`
}

func (h *Handler) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	app, err := h.workflow.CreateApplication(r.Context(), actorFrom(r), req.ProductName, req.ProductType, req.ApplicantType)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]applicationResponse{"application": toApplicationResponse(app)})
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.workflow.List(r.Context(), actorFrom(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]applicationResponse{"applications": toApplicationResponses(apps)})
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	app, err := h.workflow.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]applicationResponse{"application": toApplicationResponse(app)})
}

func (h *Handler) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.workflow.Delete(r.Context(), actorFrom(r), id); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleAllowedActions is the gate endpoint: the actions the caller could
// take on the application in its current state. Advisory only; every command
// re-checks its own guard on execution.
func (h *Handler) handleAllowedActions(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	actor := actorFrom(r)
	app, err := h.workflow.Get(r.Context(), actor, id)
	if err != nil {
		WriteError(w, err)
		return
	}
	actions := workflow.AllowedActions(app, actor)
	WriteJSON(w, http.StatusOK, map[string][]workflow.Action{"actions": actions})
}

func (h *Handler) handleListTests(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	tests, err := h.workflow.ListTests(r.Context(), actorFrom(r), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]testResponse{"tests": toTestResponses(tests)})
}

// commandRequest is the envelope for the single command endpoint. Only the
// fields the named command reads are consulted.
type commandRequest struct {
	Command string `json:"command"`

	Score           *int   `json:"score,omitempty"`
	RejectionReason string `json:"rejectionReason,omitempty"`

	Decision string `json:"decision,omitempty"`

	PreEvalScores *preEvalScoresRequest `json:"preEvalScores,omitempty"`
	ChosenYears   int                   `json:"chosenYears,omitempty"`

	Sampling      *samplingRequest      `json:"sampling,omitempty"`
	Certification *certificationRequest `json:"certification,omitempty"`

	ValidityYears int `json:"validityYears,omitempty"`

	ToState string `json:"toState,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type preEvalScoresRequest struct {
	DocOnly               int `json:"docOnly"`
	ProductionAudit       int `json:"productionAudit"`
	ProductionAttestation int `json:"productionAttestation"`
	ManagementSystem      int `json:"managementSystem"`
}

type samplingRequest struct {
	Code              string `json:"code"`
	BatchNumber       string `json:"batchNumber"`
	SamplingPlace     string `json:"samplingPlace"`
	SamplingDate      string `json:"samplingDate"`
	Quantity          string `json:"quantity"`
	InspectorName     string `json:"inspectorName"`
	SerialNumber      string `json:"serialNumber"`
	StorageConditions string `json:"storageConditions"`
	SampleCode        string `json:"sampleCode"`
}

type certificationRequest struct {
	ProtocolNumber string `json:"protocolNumber"`
	ConductDate    string `json:"conductDate"`
	Organization   string `json:"organization"`
	TestMethod     string `json:"testMethod"`
	Result         string `json:"result"`
	Score          int    `json:"score"`
}

type commandResponse struct {
	State        string               `json:"state"`
	Score        int                  `json:"score,omitempty"`
	AllowedYears []int                `json:"allowedYears,omitempty"`
	Tests        []testResponse       `json:"tests,omitempty"`
	Certificate  *certificateResponse `json:"certificate,omitempty"`
}

func (h *Handler) handleExecuteCommand(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req commandRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	cmd, err := workflow.ParseCommand(req.Command)
	if err != nil {
		WriteError(w, err)
		return
	}
	params, err := toParams(req)
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.workflow.Execute(r.Context(), actorFrom(r), id, cmd, params)
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := commandResponse{
		State:        res.Next.String(),
		Score:        res.Score,
		AllowedYears: res.AllowedYears,
	}
	if len(res.Tests) > 0 {
		tests := make([]*workflow.Test, 0, len(res.Tests))
		for i := range res.Tests {
			tests = append(tests, &res.Tests[i])
		}
		resp.Tests = toTestResponses(tests)
	}
	if res.Certificate != nil {
		cert := toCertificateResponse(res.Certificate)
		resp.Certificate = &cert
	}
	WriteJSON(w, http.StatusOK, resp)
}

func toParams(req commandRequest) (workflow.Params, error) {
	p := workflow.Params{
		Score:           req.Score,
		RejectionReason: req.RejectionReason,
		Decision:        workflow.Decision(req.Decision),
		ChosenYears:     req.ChosenYears,
		ValidityYears:   req.ValidityYears,
		Reason:          req.Reason,
	}
	if req.PreEvalScores != nil {
		p.PreEvalScores = &scoring.SerialPreEvalScores{
			DocOnly:               req.PreEvalScores.DocOnly,
			ProductionAudit:       req.PreEvalScores.ProductionAudit,
			ProductionAttestation: req.PreEvalScores.ProductionAttestation,
			ManagementSystem:      req.PreEvalScores.ManagementSystem,
		}
	}
	if req.Sampling != nil {
		p.Sampling = &workflow.SamplingInput{
			Code:              req.Sampling.Code,
			BatchNumber:       req.Sampling.BatchNumber,
			SamplingPlace:     req.Sampling.SamplingPlace,
			SamplingDate:      req.Sampling.SamplingDate,
			Quantity:          req.Sampling.Quantity,
			InspectorName:     req.Sampling.InspectorName,
			SerialNumber:      req.Sampling.SerialNumber,
			StorageConditions: req.Sampling.StorageConditions,
			SampleCode:        req.Sampling.SampleCode,
		}
	}
	if req.Certification != nil {
		p.Certification = &workflow.CertificationInput{
			ProtocolNumber: req.Certification.ProtocolNumber,
			ConductDate:    req.Certification.ConductDate,
			Organization:   req.Certification.Organization,
			TestMethod:     req.Certification.TestMethod,
			Result:         req.Certification.Result,
			Score:          req.Certification.Score,
		}
	}
	if req.ToState != "" {
		state, err := workflow.ParseState(req.ToState)
		if err != nil {
			return workflow.Params{}, err
		}
		p.ToState = state
	}
	return p, nil
}

func (h *Handler) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	// Visibility follows the application itself.
	if _, err := h.workflow.Get(r.Context(), actorFrom(r), id); err != nil {
		WriteError(w, err)
		return
	}
	cert, err := h.certs.GetByApplication(r.Context(), id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			WriteError(w, dErrors.New(dErrors.CodeNotFound, "certificate not found"))
			return
		}
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load certificate"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]certificateResponse{"certificate": toCertificateResponse(cert)})
}

type attachDocumentRequest struct {
	FileID string `json:"fileId"`
}

func (h *Handler) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req attachDocumentRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	fileID, err := domain.ParseFileID(req.FileID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.workflow.AttachDocument(r.Context(), actorFrom(r), id, fileID); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
