package httptransport

import (
	"net/http"

	"certflow/internal/inspection"
	"certflow/pkg/domain"
)

type planInspectionRequest struct {
	Date        string `json:"date"`
	Responsible string `json:"responsible"`
	Notes       string `json:"notes"`
	Type        string `json:"type"`
	OrderSigned bool   `json:"orderSigned"`
}

func (h *Handler) handlePlanInspection(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req planInspectionRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	rec, err := h.inspections.Plan(r.Context(), actorFrom(r), id, inspection.PlanInput{
		Date:        req.Date,
		Responsible: req.Responsible,
		Notes:       req.Notes,
		Type:        inspection.Type(req.Type),
		OrderSigned: req.OrderSigned,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]inspectionResponse{"inspection": toInspectionResponse(rec)})
}

func (h *Handler) handleListInspections(w http.ResponseWriter, r *http.Request) {
	recs, err := h.inspections.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]inspectionResponse{"inspections": toInspectionResponses(recs)})
}

func (h *Handler) handleListApplicationInspections(w http.ResponseWriter, r *http.Request) {
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
	recs, err := h.inspections.ListByApplication(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]inspectionResponse{"inspections": toInspectionResponses(recs)})
}

func (h *Handler) handleGetInspection(w http.ResponseWriter, r *http.Request) {
	id, err := inspectionIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	rec, err := h.inspections.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]inspectionResponse{"inspection": toInspectionResponse(rec)})
}

func (h *Handler) handleCancelInspection(w http.ResponseWriter, r *http.Request) {
	id, err := inspectionIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.inspections.Cancel(r.Context(), actorFrom(r), id); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type completeInspectionRequest struct {
	Checklist checklist `json:"checklist"`
	Notes     string    `json:"notes"`
}

func (h *Handler) handleCompleteInspection(w http.ResponseWriter, r *http.Request) {
	id, err := inspectionIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req completeInspectionRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	cl := inspection.Checklist{
		DocumentsOk: req.Checklist.DocumentsOk,
		ProcessOk:   req.Checklist.ProcessOk,
		ProductOk:   req.Checklist.ProductOk,
	}
	if err := h.inspections.Complete(r.Context(), actorFrom(r), id, cl, req.Notes); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type denyInspectionRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleDenyInspection(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req denyInspectionRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.inspections.Deny(r.Context(), actorFrom(r), id, req.Reason); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type conductNowRequest struct {
	Checklist checklist `json:"checklist"`
}

func (h *Handler) handleConductInspectionNow(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req conductNowRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	cl := inspection.Checklist{
		DocumentsOk: req.Checklist.DocumentsOk,
		ProcessOk:   req.Checklist.ProcessOk,
		ProductOk:   req.Checklist.ProductOk,
	}
	rec, err := h.inspections.ConductNow(r.Context(), actorFrom(r), id, cl)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]inspectionResponse{"inspection": toInspectionResponse(rec)})
}

type rescheduleInspectionRequest struct {
	Date string `json:"date"`
}

func (h *Handler) handleRescheduleInspection(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req rescheduleInspectionRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	rec, err := h.inspections.Reschedule(r.Context(), actorFrom(r), id, req.Date)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]inspectionResponse{"inspection": toInspectionResponse(rec)})
}

type signInspectionRequest struct {
	SignedBy string `json:"signedBy"`
}

func (h *Handler) handleSignInspection(w http.ResponseWriter, r *http.Request) {
	id, err := applicationIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req signInspectionRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	role, err := domain.ParseRole(req.SignedBy)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.inspections.Sign(r.Context(), actorFrom(r), id, role); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
