package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
	txcontext "certflow/pkg/platform/tx"
)

// PostgresStore persists applications in PostgreSQL. Scalar lifecycle fields
// are columns; docs, the nested data records and meta are JSONB documents so
// the set-once-then-amendable records stay atomic with the row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFor(ctx, s.db)
}

const applicationColumns = `
	id, product_name, product_type, applicant_type, applicant_id, operator_id,
	state, docs, sampling_data, certification_data, meta,
	rejection_reason, analysis_score,
	contract_signed_at, inspection_signed_by_inspector, inspection_signed_by_applicant,
	inspection_result, inspection_conclusion, inspection_final_text,
	created_at, updated_at, registered_at`

func (s *PostgresStore) Create(ctx context.Context, app *Application) error {
	args, err := applicationArgs(app)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.ApplicationID) (*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id))
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) Update(ctx context.Context, app *Application) error {
	args, err := applicationArgs(app)
	if err != nil {
		return err
	}
	query := `
		UPDATE applications SET
			product_name = $2, product_type = $3, applicant_type = $4,
			applicant_id = $5, operator_id = $6, state = $7, docs = $8,
			sampling_data = $9, certification_data = $10, meta = $11,
			rejection_reason = $12, analysis_score = $13,
			contract_signed_at = $14, inspection_signed_by_inspector = $15,
			inspection_signed_by_applicant = $16, inspection_result = $17,
			inspection_conclusion = $18, inspection_final_text = $19,
			created_at = $20, updated_at = $21, registered_at = $22
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.ApplicationID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	if _, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM application_tests WHERE application_id = $1`, uuid.UUID(id)); err != nil {
		return fmt.Errorf("delete application tests: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications ORDER BY created_at`
	return s.queryApplications(ctx, query)
}

func (s *PostgresStore) ListByApplicant(ctx context.Context, applicantID domain.UserID) ([]*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE applicant_id = $1 ORDER BY created_at`
	return s.queryApplications(ctx, query, uuid.UUID(applicantID))
}

func (s *PostgresStore) queryApplications(ctx context.Context, query string, args ...any) ([]*Application, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpsertTest(ctx context.Context, t *Test) error {
	query := `
		INSERT INTO application_tests (id, application_id, key, name, value, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (application_id, key) DO UPDATE SET
			name = EXCLUDED.name,
			value = EXCLUDED.value,
			result = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID), uuid.UUID(t.ApplicationID), t.Key, t.Name, t.Value,
		string(t.Result), t.CreatedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert test: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTests(ctx context.Context, appID domain.ApplicationID) ([]*Test, error) {
	query := `
		SELECT id, application_id, key, name, value, result, created_at, updated_at
		FROM application_tests WHERE application_id = $1 ORDER BY created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()

	var out []*Test
	for rows.Next() {
		var (
			t            Test
			tid, appUUID uuid.UUID
			result       string
		)
		if err := rows.Scan(&tid, &appUUID, &t.Key, &t.Name, &t.Value, &result, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		t.ID = domain.TestID(tid)
		t.ApplicationID = domain.ApplicationID(appUUID)
		t.Result = TestResult(result)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteTests(ctx context.Context, appID domain.ApplicationID) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM application_tests WHERE application_id = $1`, uuid.UUID(appID)); err != nil {
		return fmt.Errorf("delete tests: %w", err)
	}
	return nil
}

func applicationArgs(app *Application) ([]any, error) {
	docs, err := json.Marshal(app.Docs)
	if err != nil {
		return nil, fmt.Errorf("marshal docs: %w", err)
	}
	sampling, err := marshalNullable(app.SamplingData)
	if err != nil {
		return nil, fmt.Errorf("marshal sampling data: %w", err)
	}
	certification, err := marshalNullable(app.CertificationData)
	if err != nil {
		return nil, fmt.Errorf("marshal certification data: %w", err)
	}
	meta, err := json.Marshal(app.Meta)
	if err != nil {
		return nil, fmt.Errorf("marshal meta: %w", err)
	}

	var operatorID any
	if app.OperatorID != nil {
		operatorID = uuid.UUID(*app.OperatorID)
	}

	return []any{
		uuid.UUID(app.ID), app.ProductName, string(app.ProductType), app.ApplicantType,
		uuid.UUID(app.ApplicantID), operatorID, string(app.State),
		docs, sampling, certification, meta,
		app.RejectionReason, app.AnalysisScore,
		nullTime(app.ContractSignedAt), nullTime(app.InspectionSignedByInspector),
		nullTime(app.InspectionSignedByApplicant),
		app.InspectionResult, app.InspectionConclusion, app.InspectionFinalText,
		app.CreatedAt, app.UpdatedAt, nullTime(app.RegisteredAt),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*Application, error) {
	var (
		app                        Application
		appID, applicantID         uuid.UUID
		operatorID                 uuid.NullUUID
		productType, state         string
		docs, meta                 []byte
		sampling, certification    []byte
		contractSigned, inspSigned sql.NullTime
		applSigned, registered     sql.NullTime
	)
	err := row.Scan(
		&appID, &app.ProductName, &productType, &app.ApplicantType, &applicantID, &operatorID,
		&state, &docs, &sampling, &certification, &meta,
		&app.RejectionReason, &app.AnalysisScore,
		&contractSigned, &inspSigned, &applSigned,
		&app.InspectionResult, &app.InspectionConclusion, &app.InspectionFinalText,
		&app.CreatedAt, &app.UpdatedAt, &registered,
	)
	if err != nil {
		return nil, err
	}

	app.ID = domain.ApplicationID(appID)
	app.ApplicantID = domain.UserID(applicantID)
	if operatorID.Valid {
		oid := domain.UserID(operatorID.UUID)
		app.OperatorID = &oid
	}
	app.ProductType = domain.ProductType(productType)
	app.State = State(state)
	app.ContractSignedAt = timePtr(contractSigned)
	app.InspectionSignedByInspector = timePtr(inspSigned)
	app.InspectionSignedByApplicant = timePtr(applSigned)
	app.RegisteredAt = timePtr(registered)

	if err := json.Unmarshal(docs, &app.Docs); err != nil {
		return nil, fmt.Errorf("unmarshal docs: %w", err)
	}
	if err := json.Unmarshal(meta, &app.Meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	if len(sampling) > 0 {
		app.SamplingData = &SamplingData{}
		if err := json.Unmarshal(sampling, app.SamplingData); err != nil {
			return nil, fmt.Errorf("unmarshal sampling data: %w", err)
		}
	}
	if len(certification) > 0 {
		app.CertificationData = &CertificationData{}
		if err := json.Unmarshal(certification, app.CertificationData); err != nil {
			return nil, fmt.Errorf("unmarshal certification data: %w", err)
		}
	}
	return &app, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case *SamplingData:
		if t == nil {
			return nil, nil
		}
	case *CertificationData:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
