// Package certificate holds issued certificate records and their rendering.
package certificate

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"certflow/pkg/domain"
)

// Certificate is an issued conformity certificate for one application.
type Certificate struct {
	ID            domain.CertificateID
	ApplicationID domain.ApplicationID
	Number        string
	ProductName   string
	ProductType   domain.ProductType
	ValidityYears int
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Body          string
}

// Store persists certificates.
type Store interface {
	Save(ctx context.Context, c *Certificate) error
	GetByApplication(ctx context.Context, appID domain.ApplicationID) (*Certificate, error)

	// DeleteByApplication removes the certificate owned by an application.
	// Deleting when none exists is not an error.
	DeleteByApplication(ctx context.Context, appID domain.ApplicationID) error
}

// Renderer produces the human-readable certificate body.
type Renderer interface {
	Render(c *Certificate) string
}

// NumberGenerator mints registry numbers. The default implementation is
// random; tests substitute a deterministic one.
type NumberGenerator func() string

// NewNumber returns a registry number of the form CERT-NNNNNN.
func NewNumber() string {
	return fmt.Sprintf("CERT-%06d", rand.Intn(1000000))
}

// Issue builds a certificate for the given application data. The caller
// persists it; Issue itself does no I/O.
func Issue(appID domain.ApplicationID, productName string, productType domain.ProductType, validityYears int, number string, now time.Time) *Certificate {
	c := &Certificate{
		ID:            domain.NewCertificateID(),
		ApplicationID: appID,
		Number:        number,
		ProductName:   productName,
		ProductType:   productType,
		ValidityYears: validityYears,
		IssuedAt:      now,
		ExpiresAt:     now.AddDate(validityYears, 0, 0),
	}
	return c
}
