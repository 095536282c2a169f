// Package inspection owns the on-site inspection sub-workflow linked to a
// serial-product application. Its lifecycle is independent of the parent
// machine but can force the parent's state: planning suspends to
// inspection_planned, completion and denial resolve to their own states.
package inspection

import (
	"time"

	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
)

// Type classifies an inspection.
type Type string

const (
	TypePrimary     Type = "primary"
	TypeRepeat      Type = "repeat"
	TypeUnscheduled Type = "unscheduled"
	TypeRescheduled Type = "rescheduled"
)

var validTypes = map[Type]bool{
	TypePrimary:     true,
	TypeRepeat:      true,
	TypeUnscheduled: true,
	TypeRescheduled: true,
}

// ParseType constructs a Type from external input.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !validTypes[t] {
		return "", dErrors.New(dErrors.CodeValidation, "unknown inspection type")
	}
	return t, nil
}

func (t Type) String() string { return string(t) }

// Status is the inspection record lifecycle. Cancelled records are deleted
// rather than kept, so only planned records are ever live.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusCompleted Status = "completed"
	StatusDenied    Status = "denied"
)

func (s Status) String() string { return string(s) }

// Checklist is the three-point verification an inspector fills in. The
// overall pass is the logical AND of all three.
type Checklist struct {
	DocumentsOk bool
	ProcessOk   bool
	ProductOk   bool
}

// Pass reports whether every checklist item is satisfied.
func (c Checklist) Pass() bool {
	return c.DocumentsOk && c.ProcessOk && c.ProductOk
}

// Inspection is one on-site inspection record owned by an application.
// Invariant: at most one live planned record per application.
type Inspection struct {
	ID            domain.InspectionID
	ApplicationID domain.ApplicationID
	Date          string // YYYY-MM-DD
	ResponsibleID *domain.UserID
	Responsible   string
	Notes         string
	Type          Type
	OrderSigned   bool
	Status        Status
	Checklist     *Checklist
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// Clone returns a deep copy so store reads never alias store-owned memory.
func (i *Inspection) Clone() *Inspection {
	if i == nil {
		return nil
	}
	cp := *i
	if i.ResponsibleID != nil {
		v := *i.ResponsibleID
		cp.ResponsibleID = &v
	}
	if i.Checklist != nil {
		v := *i.Checklist
		cp.Checklist = &v
	}
	if i.CompletedAt != nil {
		v := *i.CompletedAt
		cp.CompletedAt = &v
	}
	return &cp
}
