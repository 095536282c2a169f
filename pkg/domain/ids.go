package domain

import (
	"github.com/google/uuid"

	dErrors "certflow/pkg/domain-errors"
)

// Typed entity identifiers. Wrapping uuid.UUID in distinct named types keeps
// an ApplicationID from ever being passed where a UserID is expected.

type (
	ApplicationID uuid.UUID
	UserID        uuid.UUID
	InspectionID  uuid.UUID
	CertificateID uuid.UUID
	TestID        uuid.UUID
	FileID        uuid.UUID
)

func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }
func NewUserID() UserID               { return UserID(uuid.New()) }
func NewInspectionID() InspectionID   { return InspectionID(uuid.New()) }
func NewCertificateID() CertificateID { return CertificateID(uuid.New()) }
func NewTestID() TestID               { return TestID(uuid.New()) }
func NewFileID() FileID               { return FileID(uuid.New()) }

func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id InspectionID) String() string  { return uuid.UUID(id).String() }
func (id CertificateID) String() string { return uuid.UUID(id).String() }
func (id TestID) String() string        { return uuid.UUID(id).String() }
func (id FileID) String() string        { return uuid.UUID(id).String() }

func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id InspectionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TestID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id FileID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

// ParseApplicationID constructs an ApplicationID from external input.
//
// Errors: CodeValidation when the value is not a UUID.
func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ApplicationID{}, dErrors.New(dErrors.CodeValidation, "invalid application id")
	}
	return ApplicationID(u), nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, dErrors.New(dErrors.CodeValidation, "invalid user id")
	}
	return UserID(u), nil
}

func ParseInspectionID(s string) (InspectionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return InspectionID{}, dErrors.New(dErrors.CodeValidation, "invalid inspection id")
	}
	return InspectionID(u), nil
}

func ParseFileID(s string) (FileID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return FileID{}, dErrors.New(dErrors.CodeValidation, "invalid file id")
	}
	return FileID(u), nil
}
