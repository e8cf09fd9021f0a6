package person

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
	pstrings "civreg/pkg/platform/strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const personColumns = `id, full_name, alias, date_of_birth, gender, id_number, id_issue_date, id_issue_place,
	nationality, ethnicity, religion, native_province, native_district, native_ward, occupation, education,
	household_id, relationship_to_head, residence_status, permanent_residence_date, previous_address,
	is_newborn, is_dead, death_date, death_reason, has_moved_out, move_out_date, move_out_destination,
	notes, created_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Person) error {
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO persons (`+personColumns+`, name_folded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33)
	`, append(personArgs(p), pstrings.Fold(p.FullName))...)
	if err != nil {
		return fmt.Errorf("insert person: %w", storage.MapError(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	row := storage.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = $1`+storage.ForUpdate(ctx), uuid.UUID(personID))
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.PersonID) ([]*models.Person, error) {
	if len(ids) == 0 {
		return []*models.Person{}, nil
	}
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = ANY($1::uuid[]) ORDER BY array_position($1::uuid[], id)`,
		pq.Array(id.PersonIDStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("find persons: %w", err)
	}
	defer rows.Close()
	return scanPersons(rows)
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Person) error {
	res, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE persons SET
			full_name = $2, alias = $3, date_of_birth = $4, gender = $5, id_number = $6,
			id_issue_date = $7, id_issue_place = $8, nationality = $9, ethnicity = $10, religion = $11,
			native_province = $12, native_district = $13, native_ward = $14, occupation = $15,
			education = $16, household_id = $17, relationship_to_head = $18, residence_status = $19,
			permanent_residence_date = $20, previous_address = $21, is_newborn = $22, is_dead = $23,
			death_date = $24, death_reason = $25, has_moved_out = $26, move_out_date = $27,
			move_out_destination = $28, notes = $29, updated_at = $30, name_folded = $31
		WHERE id = $1
	`, append(personArgs(p)[:29], p.UpdatedAt, pstrings.Fold(p.FullName))...)
	if err != nil {
		return fmt.Errorf("update person: %w", storage.MapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// AssignHousehold is a single updateMany over ids.
func (s *PostgresStore) AssignHousehold(ctx context.Context, ids []id.PersonID, householdID *id.HouseholdID, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := storage.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE persons SET household_id = $1, updated_at = $2 WHERE id = ANY($3::uuid[])
	`, nullHousehold(householdID), now, pq.Array(id.PersonIDStrings(ids)))
	if err != nil {
		return fmt.Errorf("assign household: %w", storage.MapError(err))
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.PersonFilter, now time.Time) ([]*models.Person, int, error) {
	where, args := personWhere(filter, now)
	conn := storage.Conn(ctx, s.db)

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count persons: %w", err)
	}

	page := filter.Page.Normalize()
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM persons%s ORDER BY full_name, id LIMIT $%d OFFSET $%d`, personColumns, where, n+1, n+2)
	rows, err := conn.QueryContext(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()
	out, err := scanPersons(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func personWhere(f models.PersonFilter, now time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.IncludeInactive {
		conds = append(conds, "NOT is_dead AND NOT has_moved_out")
	}
	if f.ResidenceStatus != "" {
		conds = append(conds, "residence_status = "+arg(string(f.ResidenceStatus)))
	}
	if f.Gender != "" {
		conds = append(conds, "gender = "+arg(string(f.Gender)))
	}
	if f.AgeCategory != "" {
		from, to := models.BirthRange(f.AgeCategory, now)
		if !from.IsZero() {
			conds = append(conds, "date_of_birth >= "+arg(from))
		}
		conds = append(conds, "date_of_birth < "+arg(to))
	}
	if f.HouseholdID != nil {
		conds = append(conds, "household_id = "+arg(uuid.UUID(*f.HouseholdID)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		folded := arg(pstrings.Fold(search))
		raw := arg(search)
		conds = append(conds, fmt.Sprintf("(name_folded LIKE '%%' || %s || '%%' OR id_number ILIKE '%%' || %s || '%%')", folded, raw))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Breakdown aggregates the active population in one pass.
func (s *PostgresStore) Breakdown(ctx context.Context, now time.Time) (models.PopulationBreakdown, error) {
	preFrom, _ := models.BirthRange(models.AgePreschool, now)
	stuFrom, stuTo := models.BirthRange(models.AgeStudent, now)
	workFrom, workTo := models.BirthRange(models.AgeWorking, now)
	_, retTo := models.BirthRange(models.AgeRetired, now)

	var (
		out                                  models.PopulationBreakdown
		male, female, other                  int
		preschool, student, working, retired int
	)
	err := storage.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE residence_status = 'temporary'),
			COUNT(*) FILTER (WHERE residence_status = 'temporarily_absent'),
			COUNT(*) FILTER (WHERE gender = 'male'),
			COUNT(*) FILTER (WHERE gender = 'female'),
			COUNT(*) FILTER (WHERE gender = 'other'),
			COUNT(*) FILTER (WHERE date_of_birth >= $1),
			COUNT(*) FILTER (WHERE date_of_birth >= $2 AND date_of_birth < $3),
			COUNT(*) FILTER (WHERE date_of_birth >= $4 AND date_of_birth < $5),
			COUNT(*) FILTER (WHERE date_of_birth < $6)
		FROM persons
		WHERE NOT is_dead AND NOT has_moved_out
	`, preFrom, stuFrom, stuTo, workFrom, workTo, retTo).Scan(
		&out.Total, &out.Temporary, &out.TemporarilyAbsent,
		&male, &female, &other,
		&preschool, &student, &working, &retired,
	)
	if err != nil {
		return models.PopulationBreakdown{}, fmt.Errorf("aggregate population: %w", err)
	}
	out.ByGender = map[models.Gender]int{
		models.GenderMale:   male,
		models.GenderFemale: female,
		models.GenderOther:  other,
	}
	out.ByAgeCategory = map[models.AgeCategory]int{
		models.AgePreschool: preschool,
		models.AgeStudent:   student,
		models.AgeWorking:   working,
		models.AgeRetired:   retired,
	}
	return out, nil
}

func personArgs(p *models.Person) []any {
	return []any{
		uuid.UUID(p.ID), p.FullName, p.Alias, p.DateOfBirth, string(p.Gender),
		nullString(p.IDNumber), nullTime(p.IDIssueDate), p.IDIssuePlace,
		p.Nationality, p.Ethnicity, p.Religion,
		p.NativePlace.Province, p.NativePlace.District, p.NativePlace.Ward,
		nullString(p.Occupation), string(p.Education),
		nullHousehold(p.HouseholdID), string(p.RelationshipToHead), string(p.ResidenceStatus),
		nullTime(p.PermanentResidenceDate), p.PreviousAddress,
		p.IsNewborn, p.IsDead, nullTime(p.DeathDate), p.DeathReason,
		p.HasMovedOut, nullTime(p.MoveOutDate), p.MoveOutDestination,
		p.Notes, nullUser(p.CreatedBy), p.CreatedAt, p.UpdatedAt,
	}
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullHousehold(h *id.HouseholdID) any {
	if h == nil {
		return nil
	}
	return uuid.UUID(*h)
}

func nullUser(u id.UserID) any {
	if u.IsNil() {
		return nil
	}
	return uuid.UUID(u)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (*models.Person, error) {
	var (
		p                                       models.Person
		pid                                     uuid.UUID
		gender, education, relationship, status string
		idNumber, occupation                    sql.NullString
		idIssueDate, permanentDate              sql.NullTime
		deathDate, moveOutDate                  sql.NullTime
		householdID, createdBy                  uuid.NullUUID
	)
	err := row.Scan(
		&pid, &p.FullName, &p.Alias, &p.DateOfBirth, &gender, &idNumber, &idIssueDate, &p.IDIssuePlace,
		&p.Nationality, &p.Ethnicity, &p.Religion, &p.NativePlace.Province, &p.NativePlace.District, &p.NativePlace.Ward,
		&occupation, &education,
		&householdID, &relationship, &status, &permanentDate, &p.PreviousAddress,
		&p.IsNewborn, &p.IsDead, &deathDate, &p.DeathReason, &p.HasMovedOut, &moveOutDate, &p.MoveOutDestination,
		&p.Notes, &createdBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id.PersonID(pid)
	p.Gender = models.Gender(gender)
	p.Education = models.Education(education)
	p.RelationshipToHead = models.Relationship(relationship)
	p.ResidenceStatus = models.ResidenceStatus(status)
	if idNumber.Valid {
		p.IDNumber = &idNumber.String
	}
	if occupation.Valid {
		p.Occupation = &occupation.String
	}
	if idIssueDate.Valid {
		p.IDIssueDate = &idIssueDate.Time
	}
	if permanentDate.Valid {
		p.PermanentResidenceDate = &permanentDate.Time
	}
	if deathDate.Valid {
		p.DeathDate = &deathDate.Time
	}
	if moveOutDate.Valid {
		p.MoveOutDate = &moveOutDate.Time
	}
	if householdID.Valid {
		h := id.HouseholdID(householdID.UUID)
		p.HouseholdID = &h
	}
	if createdBy.Valid {
		p.CreatedBy = id.UserID(createdBy.UUID)
	}
	return &p, nil
}

func scanPersons(rows *sql.Rows) ([]*models.Person, error) {
	out := []*models.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return out, nil
}

// RecentlyRegistered returns up to limit persons in any life status, newest
// record first.
func (s *PostgresStore) RecentlyRegistered(ctx context.Context, limit int) ([]*models.Person, error) {
	rows, err := storage.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+personColumns+` FROM persons ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent persons: %w", err)
	}
	defer rows.Close()
	return scanPersons(rows)
}
