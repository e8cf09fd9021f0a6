package residence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"civreg/internal/population/models"
	"civreg/internal/storage"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const residenceColumns = `id, person_id, type, start_date, end_date, address, reason, status,
	created_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.TemporaryResidence) error {
	var createdBy any
	if !r.CreatedBy.IsNil() {
		createdBy = uuid.UUID(r.CreatedBy)
	}
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO temporary_residences (`+residenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(r.ID), uuid.UUID(r.PersonID), string(r.Type), r.StartDate, r.EndDate,
		r.Address, r.Reason, string(r.Status), createdBy, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert temporary residence: %w", storage.MapError(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, residenceID id.ResidenceID) (*models.TemporaryResidence, error) {
	row := storage.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+residenceColumns+` FROM temporary_residences WHERE id = $1`+storage.ForUpdate(ctx), uuid.UUID(residenceID))
	return s.findOne(ctx, row)
}

func (s *PostgresStore) FindOpenByPerson(ctx context.Context, personID id.PersonID) (*models.TemporaryResidence, error) {
	row := storage.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+residenceColumns+` FROM temporary_residences
		WHERE person_id = $1 AND status IN ('active', 'extended')`+storage.ForUpdate(ctx), uuid.UUID(personID))
	return s.findOne(ctx, row)
}

func (s *PostgresStore) findOne(ctx context.Context, row *sql.Row) (*models.TemporaryResidence, error) {
	r, err := scanResidence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find temporary residence: %w", err)
	}
	if err := s.loadExtensions(ctx, []*models.TemporaryResidence{r}); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.TemporaryResidence) error {
	res, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE temporary_residences SET status = $2, end_date = $3, updated_at = $4 WHERE id = $1
	`, uuid.UUID(r.ID), string(r.Status), r.EndDate, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update temporary residence: %w", storage.MapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendExtension(ctx context.Context, residenceID id.ResidenceID, ext models.Extension) error {
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO residence_extensions (residence_id, seq, previous_end_date, new_end_date, extended_at, reason)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
		FROM residence_extensions WHERE residence_id = $1
	`, uuid.UUID(residenceID), ext.PreviousEndDate, ext.NewEndDate, ext.ExtendedAt, ext.Reason)
	if err != nil {
		return fmt.Errorf("append residence extension: %w", storage.MapError(err))
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ResidenceFilter, now time.Time) ([]*models.TemporaryResidence, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Type != "" {
		conds = append(conds, "type = "+arg(string(filter.Type)))
	}
	switch filter.Status {
	case "":
	case models.DeclarationActive:
		conds = append(conds, "status = 'active' AND end_date >= "+arg(now))
	case models.DeclarationExpired:
		conds = append(conds, "status = 'active' AND end_date < "+arg(now))
	default:
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	conn := storage.Conn(ctx, s.db)
	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM temporary_residences`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count temporary residences: %w", err)
	}

	page := filter.Page.Normalize()
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM temporary_residences%s ORDER BY end_date, created_at LIMIT $%d OFFSET $%d`,
		residenceColumns, where, n+1, n+2)
	rows, err := conn.QueryContext(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list temporary residences: %w", err)
	}
	out, err := scanResidences(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := s.loadExtensions(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Expiring returns active declarations whose end date falls in (from, until].
func (s *PostgresStore) Expiring(ctx context.Context, from, until time.Time) ([]*models.TemporaryResidence, error) {
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT `+residenceColumns+` FROM temporary_residences
		WHERE status = 'active' AND end_date > $1 AND end_date <= $2
		ORDER BY end_date, created_at
	`, from, until)
	if err != nil {
		return nil, fmt.Errorf("query expiring residences: %w", err)
	}
	out, err := scanResidences(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadExtensions(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadExtensions fills Extensions for every residence with one query.
func (s *PostgresStore) loadExtensions(ctx context.Context, items []*models.TemporaryResidence) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[id.ResidenceID]*models.TemporaryResidence, len(items))
	ids := make([]string, len(items))
	for i, r := range items {
		byID[r.ID] = r
		ids[i] = r.ID.String()
	}
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT residence_id, previous_end_date, new_end_date, extended_at, reason
		FROM residence_extensions WHERE residence_id = ANY($1::uuid[])
		ORDER BY residence_id, seq
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query residence extensions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rid uuid.UUID
			ext models.Extension
		)
		if err := rows.Scan(&rid, &ext.PreviousEndDate, &ext.NewEndDate, &ext.ExtendedAt, &ext.Reason); err != nil {
			return fmt.Errorf("scan residence extension: %w", err)
		}
		if r, ok := byID[id.ResidenceID(rid)]; ok {
			r.Extensions = append(r.Extensions, ext)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResidence(row scanner) (*models.TemporaryResidence, error) {
	var (
		r           models.TemporaryResidence
		rid, pid    uuid.UUID
		typ, status string
		createdBy   uuid.NullUUID
	)
	if err := row.Scan(&rid, &pid, &typ, &r.StartDate, &r.EndDate, &r.Address, &r.Reason, &status,
		&createdBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID = id.ResidenceID(rid)
	r.PersonID = id.PersonID(pid)
	r.Type = models.ResidenceType(typ)
	r.Status = models.DeclarationStatus(status)
	if createdBy.Valid {
		r.CreatedBy = id.UserID(createdBy.UUID)
	}
	r.Extensions = []models.Extension{}
	return &r, nil
}

// scanResidences drains and closes rows so follow-up queries can reuse the
// connection inside a transaction.
func scanResidences(rows *sql.Rows) ([]*models.TemporaryResidence, error) {
	defer rows.Close()
	out := []*models.TemporaryResidence{}
	for rows.Next() {
		r, err := scanResidence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan temporary residence: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate temporary residences: %w", err)
	}
	return out, nil
}
