package complaint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"civreg/internal/complaint/models"
	"civreg/internal/storage"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// PostgresStore persists complaints in PostgreSQL, on the ambient
// transaction when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const complaintColumns = `id, code, submitters, category, title, description, status, priority,
	resolution, resolved_at, resolved_by, assigned_to, is_merged, merged_from, merged_into,
	created_by, created_at, updated_at`

func nullableUser(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return uuid.UUID(*u)
}

// Create inserts the complaint and its initial history. A code collision is
// reported as a conflict without aborting the surrounding transaction.
func (s *PostgresStore) Create(ctx context.Context, c *models.Complaint) error {
	var mergedInto any
	if c.MergedInto != nil {
		mergedInto = uuid.UUID(*c.MergedInto)
	}
	res, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO complaints (`+complaintColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (code) DO NOTHING
	`,
		uuid.UUID(c.ID), c.Code, pq.Array(id.PersonIDStrings(c.Submitters)), string(c.Category),
		c.Title, c.Description, string(c.Status), string(c.Priority),
		c.Resolution, c.ResolvedAt, nullableUser(c.ResolvedBy), nullableUser(c.AssignedTo),
		c.IsMerged, pq.Array(id.ComplaintIDStrings(c.MergedFrom)), mergedInto,
		uuid.UUID(c.CreatedBy), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert complaint: %w", storage.MapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.Conflict(ConstraintCode)
	}
	for _, entry := range c.StatusHistory {
		if err := s.AppendStatus(ctx, c.ID, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, complaintID id.ComplaintID) (*models.Complaint, error) {
	row := storage.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, uuid.UUID(complaintID))
	c, err := scanComplaint(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find complaint: %w", err)
	}
	if err := s.loadHistory(ctx, []*models.Complaint{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.ComplaintID) ([]*models.Complaint, error) {
	if len(ids) == 0 {
		return []*models.Complaint{}, nil
	}
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE id = ANY($1::uuid[])`,
		pq.Array(id.ComplaintIDStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("find complaints: %w", err)
	}
	out, err := scanComplaints(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the mutable columns. History rows and the merged flag are
// never touched here.
func (s *PostgresStore) Update(ctx context.Context, c *models.Complaint) error {
	res, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE complaints
		SET submitters = $2, title = $3, description = $4, status = $5, priority = $6,
			resolution = $7, resolved_at = $8, resolved_by = $9, assigned_to = $10,
			merged_from = $11, updated_at = $12
		WHERE id = $1
	`,
		uuid.UUID(c.ID), pq.Array(id.PersonIDStrings(c.Submitters)), c.Title, c.Description,
		string(c.Status), string(c.Priority), c.Resolution, c.ResolvedAt,
		nullableUser(c.ResolvedBy), nullableUser(c.AssignedTo),
		pq.Array(id.ComplaintIDStrings(c.MergedFrom)), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update complaint: %w", storage.MapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendStatus(ctx context.Context, complaintID id.ComplaintID, entry models.StatusEntry) error {
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO complaint_status_history (complaint_id, seq, status, note, occurred_at, actor_id)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
		FROM complaint_status_history WHERE complaint_id = $1
	`, uuid.UUID(complaintID), string(entry.Status), entry.Note, entry.At, uuid.UUID(entry.ActorID))
	if err != nil {
		return fmt.Errorf("append complaint status: %w", storage.MapError(err))
	}
	return nil
}

// MarkMerged is the updateMany half of a merge.
func (s *PostgresStore) MarkMerged(ctx context.Context, ids []id.ComplaintID, into id.ComplaintID, now time.Time) (int, error) {
	res, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE complaints SET is_merged = TRUE, merged_into = $2, updated_at = $3
		WHERE id = ANY($1::uuid[]) AND NOT is_merged
	`, pq.Array(id.ComplaintIDStrings(ids)), uuid.UUID(into), now)
	if err != nil {
		return 0, fmt.Errorf("mark complaints merged: %w", storage.MapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark complaints merged: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Complaint, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !filter.IncludeMerged {
		conds = append(conds, "NOT is_merged")
	}
	if filter.Category != "" {
		conds = append(conds, "category = "+arg(string(filter.Category)))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if filter.Priority != "" {
		conds = append(conds, "priority = "+arg(string(filter.Priority)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	conn := storage.Conn(ctx, s.db)
	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}

	page := filter.Page.Normalize()
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM complaints%s ORDER BY created_at DESC, code DESC LIMIT $%d OFFSET $%d`,
		complaintColumns, where, n+1, n+2)
	rows, err := conn.QueryContext(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}
	out, err := scanComplaints(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := s.loadHistory(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// rangeClause renders r as a WHERE fragment over created_at.
func rangeClause(r *models.DateRange) (string, []any) {
	where := " WHERE NOT is_merged"
	var args []any
	if r == nil {
		return where, args
	}
	if !r.From.IsZero() {
		args = append(args, r.From)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !r.To.IsZero() {
		args = append(args, r.To)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	return where, args
}

func (s *PostgresStore) ListCreated(ctx context.Context, r *models.DateRange) ([]*models.Complaint, error) {
	where, args := rangeClause(r)
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+complaintColumns+` FROM complaints`+where+` ORDER BY created_at DESC, code DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return scanComplaints(rows)
}

func (s *PostgresStore) Aggregate(ctx context.Context, r *models.DateRange) (models.Counts, error) {
	where, args := rangeClause(r)
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT status, category, COUNT(*) FROM complaints`+where+` GROUP BY status, category`, args...)
	if err != nil {
		return models.Counts{}, fmt.Errorf("aggregate complaints: %w", err)
	}
	defer rows.Close()

	counts := models.NewCounts()
	for rows.Next() {
		var (
			status, category string
			n                int
		)
		if err := rows.Scan(&status, &category, &n); err != nil {
			return models.Counts{}, fmt.Errorf("scan complaint aggregate: %w", err)
		}
		counts.Total += n
		counts.ByStatus[models.Status(status)] += n
		counts.ByCategory[models.Category(category)] += n
	}
	if err := rows.Err(); err != nil {
		return models.Counts{}, fmt.Errorf("iterate complaint aggregate: %w", err)
	}
	return counts, nil
}

// loadHistory fills StatusHistory for every complaint with one query.
func (s *PostgresStore) loadHistory(ctx context.Context, items []*models.Complaint) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[id.ComplaintID]*models.Complaint, len(items))
	ids := make([]id.ComplaintID, len(items))
	for i, c := range items {
		byID[c.ID] = c
		ids[i] = c.ID
	}
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT complaint_id, status, note, occurred_at, actor_id
		FROM complaint_status_history WHERE complaint_id = ANY($1::uuid[])
		ORDER BY complaint_id, seq
	`, pq.Array(id.ComplaintIDStrings(ids)))
	if err != nil {
		return fmt.Errorf("query complaint history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid    uuid.UUID
			status string
			actor  uuid.NullUUID
			entry  models.StatusEntry
		)
		if err := rows.Scan(&cid, &status, &entry.Note, &entry.At, &actor); err != nil {
			return fmt.Errorf("scan complaint history: %w", err)
		}
		entry.Status = models.Status(status)
		if actor.Valid {
			entry.ActorID = id.UserID(actor.UUID)
		}
		if c, ok := byID[id.ComplaintID(cid)]; ok {
			c.StatusHistory = append(c.StatusHistory, entry)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row scanner) (*models.Complaint, error) {
	var (
		c                          models.Complaint
		cid                        uuid.UUID
		category, status, priority string
		submitters, mergedFrom     []string
		resolvedAt                 sql.NullTime
		resolvedBy, assignedTo     uuid.NullUUID
		mergedInto, createdBy      uuid.NullUUID
	)
	if err := row.Scan(&cid, &c.Code, pq.Array(&submitters), &category, &c.Title, &c.Description,
		&status, &priority, &c.Resolution, &resolvedAt, &resolvedBy, &assignedTo,
		&c.IsMerged, pq.Array(&mergedFrom), &mergedInto, &createdBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = id.ComplaintID(cid)
	c.Category = models.Category(category)
	c.Status = models.Status(status)
	c.Priority = models.Priority(priority)
	c.Submitters = make([]id.PersonID, 0, len(submitters))
	for _, raw := range submitters {
		u, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse submitter id: %w", err)
		}
		c.Submitters = append(c.Submitters, id.PersonID(u))
	}
	c.MergedFrom = make([]id.ComplaintID, 0, len(mergedFrom))
	for _, raw := range mergedFrom {
		u, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse merged complaint id: %w", err)
		}
		c.MergedFrom = append(c.MergedFrom, id.ComplaintID(u))
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	if resolvedBy.Valid {
		u := id.UserID(resolvedBy.UUID)
		c.ResolvedBy = &u
	}
	if assignedTo.Valid {
		u := id.UserID(assignedTo.UUID)
		c.AssignedTo = &u
	}
	if mergedInto.Valid {
		m := id.ComplaintID(mergedInto.UUID)
		c.MergedInto = &m
	}
	if createdBy.Valid {
		c.CreatedBy = id.UserID(createdBy.UUID)
	}
	c.StatusHistory = []models.StatusEntry{}
	return &c, nil
}

// scanComplaints drains and closes rows so follow-up queries can reuse the
// connection inside a transaction.
func scanComplaints(rows *sql.Rows) ([]*models.Complaint, error) {
	defer rows.Close()
	out := []*models.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate complaints: %w", err)
	}
	return out, nil
}
