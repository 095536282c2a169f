package audit

import (
	"sort"
	"time"

	"certflow/pkg/domain"
)

// Event is one append-only audit record of a workflow action. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	ActorID   domain.UserID
	Role      string
	Action    string
	FromState string
	ToState   string
	TargetID  string
	Note      string
}

// Critical actions survive an administrative Clear of the audit log. These
// are the records with registry significance: losing them would orphan an
// issued certificate or a forced state change.
var criticalActions = map[string]bool{
	"create_application":   true,
	"generate_certificate": true,
	"register":             true,
	"complete_inspection":  true,
	"deny_inspection":      true,
	"admin_force":          true,
}

// IsCritical reports whether events for this action are retained on Clear.
func IsCritical(action string) bool {
	return criticalActions[action]
}

// CriticalActions returns the retained action names in stable order.
func CriticalActions() []string {
	out := make([]string, 0, len(criticalActions))
	for action := range criticalActions {
		out = append(out, action)
	}
	sort.Strings(out)
	return out
}
