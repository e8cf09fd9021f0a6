package household

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"civreg/internal/population/models"
	"civreg/internal/storage"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// PostgresStore persists households in PostgreSQL. Every method runs on the
// ambient transaction when one is in the context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const householdColumns = `id, code, head_id, members, house_number, street, ward, district, city,
	status, created_by, created_at, updated_at`

// Create inserts the household row and its initial history. A code collision
// is reported as a conflict without aborting the surrounding transaction.
func (s *PostgresStore) Create(ctx context.Context, h *models.Household) error {
	conn := storage.Conn(ctx, s.db)
	res, err := conn.ExecContext(ctx, `
		INSERT INTO households (`+householdColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (code) DO NOTHING
	`,
		uuid.UUID(h.ID), h.Code, uuid.UUID(h.HeadID), pq.Array(id.PersonIDStrings(h.Members)),
		h.Address.HouseNumber, h.Address.Street, h.Address.Ward, h.Address.District, h.Address.City,
		string(h.Status), uuid.UUID(h.CreatedBy), h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert household: %w", storage.MapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.Conflict(ConstraintCode)
	}
	for _, entry := range h.History {
		if err := s.AppendHistory(ctx, h.ID, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	conn := storage.Conn(ctx, s.db)
	row := conn.QueryRowContext(ctx, `SELECT `+householdColumns+` FROM households WHERE id = $1`+storage.ForUpdate(ctx), uuid.UUID(householdID))
	h, err := scanHousehold(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find household: %w", err)
	}
	history, err := s.history(ctx, householdID)
	if err != nil {
		return nil, err
	}
	h.History = history
	return h, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.HouseholdID) ([]*models.Household, error) {
	if len(ids) == 0 {
		return []*models.Household{}, nil
	}
	strs := make([]string, len(ids))
	for i, householdID := range ids {
		strs[i] = householdID.String()
	}
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+householdColumns+` FROM households WHERE id = ANY($1::uuid[])`, pq.Array(strs))
	if err != nil {
		return nil, fmt.Errorf("find households: %w", err)
	}
	defer rows.Close()
	return scanHouseholds(rows)
}

// Update writes the mutable columns. History rows are never touched here.
func (s *PostgresStore) Update(ctx context.Context, h *models.Household) error {
	res, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE households
		SET head_id = $2, members = $3, house_number = $4, street = $5, ward = $6,
			district = $7, city = $8, status = $9, updated_at = $10
		WHERE id = $1
	`,
		uuid.UUID(h.ID), uuid.UUID(h.HeadID), pq.Array(id.PersonIDStrings(h.Members)),
		h.Address.HouseNumber, h.Address.Street, h.Address.Ward, h.Address.District, h.Address.City,
		string(h.Status), h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update household: %w", storage.MapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, householdID id.HouseholdID, entry models.HistoryEntry) error {
	var related *uuid.UUID
	if entry.RelatedHousehold != nil {
		r := uuid.UUID(*entry.RelatedHousehold)
		related = &r
	}
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO household_history (household_id, seq, event, description, occurred_at, related_household_id, actor_id)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6
		FROM household_history WHERE household_id = $1
	`,
		uuid.UUID(householdID), string(entry.Event), entry.Description, entry.OccurredAt, related, uuid.UUID(entry.ActorID),
	)
	if err != nil {
		return fmt.Errorf("append household history: %w", storage.MapError(err))
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.HouseholdFilter) ([]*models.Household, int, error) {
	status := filter.Status
	if status == "" {
		status = models.HouseholdStatusActive
	}
	page := filter.Page.Normalize()
	conn := storage.Conn(ctx, s.db)

	const where = `
		WHERE status = $1
		AND ($2 = '' OR code ILIKE '%' || $2 || '%' OR house_number ILIKE '%' || $2 || '%')`

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM households`+where, string(status), filter.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count households: %w", err)
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT `+householdColumns+` FROM households`+where+` ORDER BY code LIMIT $3 OFFSET $4`,
		string(status), filter.Search, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list households: %w", err)
	}
	defer rows.Close()
	out, err := scanHouseholds(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PostgresStore) Count(ctx context.Context, status models.HouseholdStatus) (int, error) {
	var n int
	err := storage.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM households WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count households: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) history(ctx context.Context, householdID id.HouseholdID) ([]models.HistoryEntry, error) {
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT event, description, occurred_at, related_household_id, actor_id
		FROM household_history WHERE household_id = $1 ORDER BY seq
	`, uuid.UUID(householdID))
	if err != nil {
		return nil, fmt.Errorf("query household history: %w", err)
	}
	defer rows.Close()

	history := []models.HistoryEntry{}
	for rows.Next() {
		var (
			entry   models.HistoryEntry
			event   string
			related uuid.NullUUID
			actor   uuid.NullUUID
		)
		if err := rows.Scan(&event, &entry.Description, &entry.OccurredAt, &related, &actor); err != nil {
			return nil, fmt.Errorf("scan household history: %w", err)
		}
		entry.Event = models.HistoryEvent(event)
		if related.Valid {
			r := id.HouseholdID(related.UUID)
			entry.RelatedHousehold = &r
		}
		if actor.Valid {
			entry.ActorID = id.UserID(actor.UUID)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate household history: %w", err)
	}
	return history, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHousehold(row scanner) (*models.Household, error) {
	var (
		h         models.Household
		hid, head uuid.UUID
		createdBy uuid.NullUUID
		members   []string
		status    string
	)
	if err := row.Scan(
		&hid, &h.Code, &head, pq.Array(&members),
		&h.Address.HouseNumber, &h.Address.Street, &h.Address.Ward, &h.Address.District, &h.Address.City,
		&status, &createdBy, &h.CreatedAt, &h.UpdatedAt,
	); err != nil {
		return nil, err
	}
	h.ID = id.HouseholdID(hid)
	h.HeadID = id.PersonID(head)
	h.Status = models.HouseholdStatus(status)
	if createdBy.Valid {
		h.CreatedBy = id.UserID(createdBy.UUID)
	}
	h.Members = make([]id.PersonID, 0, len(members))
	for _, m := range members {
		u, err := uuid.Parse(m)
		if err != nil {
			return nil, fmt.Errorf("parse member id %q: %w", m, err)
		}
		h.Members = append(h.Members, id.PersonID(u))
	}
	return &h, nil
}

func scanHouseholds(rows *sql.Rows) ([]*models.Household, error) {
	out := []*models.Household{}
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate households: %w", err)
	}
	return out, nil
}

// RecentlyUpdated returns up to limit households of any status, most recently
// updated first. History is not loaded.
func (s *PostgresStore) RecentlyUpdated(ctx context.Context, limit int) ([]*models.Household, error) {
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+householdColumns+` FROM households ORDER BY updated_at DESC, code LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent households: %w", err)
	}
	defer rows.Close()
	return scanHouseholds(rows)
}
