package certificate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
	txcontext "certflow/pkg/platform/tx"
)

// PostgresStore persists certificates in PostgreSQL. One row per
// application; Save upserts on the application id.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFor(ctx, s.db)
}

const certificateColumns = `
	id, application_id, number, product_name, product_type,
	validity_years, issued_at, expires_at, body`

func (s *PostgresStore) Save(ctx context.Context, c *Certificate) error {
	query := `
		INSERT INTO certificates (` + certificateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (application_id) DO UPDATE SET
			number = EXCLUDED.number,
			product_name = EXCLUDED.product_name,
			product_type = EXCLUDED.product_type,
			validity_years = EXCLUDED.validity_years,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at,
			body = EXCLUDED.body
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), uuid.UUID(c.ApplicationID), c.Number, c.ProductName,
		c.ProductType.String(), c.ValidityYears, c.IssuedAt, c.ExpiresAt, c.Body)
	if err != nil {
		return fmt.Errorf("save certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByApplication(ctx context.Context, appID domain.ApplicationID) (*Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE application_id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(appID))

	var (
		c           Certificate
		certID, aid uuid.UUID
		productType string
	)
	err := row.Scan(&certID, &aid, &c.Number, &c.ProductName, &productType,
		&c.ValidityYears, &c.IssuedAt, &c.ExpiresAt, &c.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	c.ID = domain.CertificateID(certID)
	c.ApplicationID = domain.ApplicationID(aid)
	c.ProductType = domain.ProductType(productType)
	return &c, nil
}

func (s *PostgresStore) DeleteByApplication(ctx context.Context, appID domain.ApplicationID) error {
	query := `DELETE FROM certificates WHERE application_id = $1`
	if _, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(appID)); err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	return nil
}
