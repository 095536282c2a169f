package inspection

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

// PostgresStore persists inspection records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFor(ctx, s.db)
}

const inspectionColumns = `
	id, application_id, date, responsible_id, responsible, notes, type,
	order_signed, status, documents_ok, process_ok, product_ok,
	created_at, updated_at, completed_at`

func (s *PostgresStore) Save(ctx context.Context, i *Inspection) error {
	var responsibleID any
	if i.ResponsibleID != nil {
		responsibleID = uuid.UUID(*i.ResponsibleID)
	}
	var documentsOk, processOk, productOk sql.NullBool
	if i.Checklist != nil {
		documentsOk = sql.NullBool{Bool: i.Checklist.DocumentsOk, Valid: true}
		processOk = sql.NullBool{Bool: i.Checklist.ProcessOk, Valid: true}
		productOk = sql.NullBool{Bool: i.Checklist.ProductOk, Valid: true}
	}
	var completedAt sql.NullTime
	if i.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *i.CompletedAt, Valid: true}
	}

	query := `
		INSERT INTO inspections (` + inspectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			responsible_id = EXCLUDED.responsible_id,
			responsible = EXCLUDED.responsible,
			notes = EXCLUDED.notes,
			type = EXCLUDED.type,
			order_signed = EXCLUDED.order_signed,
			status = EXCLUDED.status,
			documents_ok = EXCLUDED.documents_ok,
			process_ok = EXCLUDED.process_ok,
			product_ok = EXCLUDED.product_ok,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(i.ID), uuid.UUID(i.ApplicationID), i.Date, responsibleID,
		i.Responsible, i.Notes, string(i.Type), i.OrderSigned, string(i.Status),
		documentsOk, processOk, productOk, i.CreatedAt, i.UpdatedAt, completedAt)
	if err != nil {
		return fmt.Errorf("save inspection: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.InspectionID) (*Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id))
	rec, err := scanInspection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get inspection: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.InspectionID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM inspections WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete inspection: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections ORDER BY created_at`
	return s.query(ctx, query)
}

func (s *PostgresStore) ListByApplication(ctx context.Context, appID domain.ApplicationID) ([]*Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE application_id = $1 ORDER BY created_at`
	return s.query(ctx, query, uuid.UUID(appID))
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*Inspection, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inspections: %w", err)
	}
	defer rows.Close()

	var out []*Inspection
	for rows.Next() {
		rec, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inspection: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inspections: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInspection(row rowScanner) (*Inspection, error) {
	var (
		rec                            Inspection
		recID, appID                   uuid.UUID
		responsibleID                  uuid.NullUUID
		typ, status                    string
		documentsOk, processOk, prodOk sql.NullBool
		completedAt                    sql.NullTime
	)
	err := row.Scan(&recID, &appID, &rec.Date, &responsibleID, &rec.Responsible,
		&rec.Notes, &typ, &rec.OrderSigned, &status,
		&documentsOk, &processOk, &prodOk,
		&rec.CreatedAt, &rec.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	rec.ID = domain.InspectionID(recID)
	rec.ApplicationID = domain.ApplicationID(appID)
	if responsibleID.Valid {
		rid := domain.UserID(responsibleID.UUID)
		rec.ResponsibleID = &rid
	}
	rec.Type = Type(typ)
	rec.Status = Status(status)
	if documentsOk.Valid {
		rec.Checklist = &Checklist{
			DocumentsOk: documentsOk.Bool,
			ProcessOk:   processOk.Bool,
			ProductOk:   prodOk.Bool,
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}
