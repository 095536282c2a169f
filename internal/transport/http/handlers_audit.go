package httptransport

import (
	"net/http"
	"time"

	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/audit"
)

type auditEventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actorId"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	FromState string    `json:"fromState,omitempty"`
	ToState   string    `json:"toState,omitempty"`
	TargetID  string    `json:"targetId"`
	Note      string    `json:"note,omitempty"`
}

func toAuditEventResponses(events []audit.Event) []auditEventResponse {
	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			Timestamp: e.Timestamp,
			ActorID:   e.ActorID.String(),
			Role:      e.Role,
			Action:    e.Action,
			FromState: e.FromState,
			ToState:   e.ToState,
			TargetID:  e.TargetID,
			Note:      e.Note,
		})
	}
	return out
}

// handleListAuditEvents returns the audit trail, optionally filtered to one
// target via ?target=<id>.
func (h *Handler) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")

	var (
		events []audit.Event
		err    error
	)
	if target != "" {
		events, err = h.publisher.List(r.Context(), target)
	} else {
		events, err = h.auditStore.ListAll(r.Context())
	}
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]auditEventResponse{"events": toAuditEventResponses(events)})
}

// handleClearAuditEvents drops the audit backlog. Events whose action is
// classified critical are always retained.
func (h *Handler) handleClearAuditEvents(w http.ResponseWriter, r *http.Request) {
	if err := h.auditStore.Clear(r.Context()); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "clear audit events"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
