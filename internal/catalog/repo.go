package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"meeting/internal/domain"
	"meeting/internal/store"
)

// Repository reads and writes classes in Postgres.
type Repository struct {
	db store.Querier
}

// NewRepository creates a repo.
func NewRepository(db store.Querier) *Repository {
	return &Repository{db: db}
}

const listingColumns = `
	c.id, c.name, c.description, c.start_date, c.end_date, c.capacity, c.active,
	c.interest_id, COALESCE(i.name, ''), COALESCE(c.instructor_id, ''), COALESCE(m.name, ''), c.created_at,
	(SELECT COUNT(DISTINCT e.id) FROM enrollments e WHERE e.class_id = c.id AND e.status <> 'cancelled')`

const listingFrom = `
	FROM classes c
	LEFT JOIN interests i ON i.id = c.interest_id
	LEFT JOIN members m ON m.id = c.instructor_id`

func scanListing(scan func(...any) error) (Listing, error) {
	var (
		l          Listing
		interestID sql.NullInt64
	)
	err := scan(&l.ID, &l.Name, &l.Description, &l.StartDate, &l.EndDate, &l.Capacity, &l.Active,
		&interestID, &l.InterestName, &l.InstructorID, &l.InstructorName, &l.CreatedAt, &l.Occupancy)
	if err != nil {
		return Listing{}, err
	}
	if interestID.Valid {
		l.InterestID = &interestID.Int64
	}
	l.StartDate = domain.DateOnly(l.StartDate)
	l.EndDate = domain.DateOnly(l.EndDate)
	return l, nil
}

func placeholder(args []any) string { return "$" + strconv.Itoa(len(args)) }

// buildWhere turns a normalised filter into a WHERE clause and its args.
func buildWhere(f Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Keyword != "" {
		args = append(args, "%"+escapeLike(f.Keyword)+"%")
		p := placeholder(args)
		clauses = append(clauses, "(c.name ILIKE "+p+" OR i.name ILIKE "+p+")")
	}
	if keywords, ok := categoryKeywords[f.Category]; ok {
		ors := lo.Map(keywords, func(k string, _ int) string {
			args = append(args, "%"+escapeLike(k)+"%")
			return "i.name ILIKE " + placeholder(args)
		})
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if f.InterestID > 0 {
		args = append(args, f.InterestID)
		clauses = append(clauses, "c.interest_id = "+placeholder(args))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(s Sort) string {
	switch s {
	case SortName:
		return " ORDER BY c.name ASC, c.id DESC"
	case SortPopular:
		return " ORDER BY 13 DESC, c.id DESC"
	default:
		return " ORDER BY c.id DESC"
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Search returns one page of listings and the total number of matches.
func (r *Repository) Search(ctx context.Context, f Filter, limit, offset int) ([]Listing, int64, error) {
	where, args := buildWhere(f)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+listingFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT" + listingColumns + listingFrom + where + orderBy(f.Sort) +
		" LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []Listing{}
	for rows.Next() {
		l, err := scanListing(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, l)
	}
	return res, total, rows.Err()
}

// Get returns one listing.
func (r *Repository) Get(ctx context.Context, id int64) (Listing, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+listingColumns+listingFrom+" WHERE c.id = $1", id)
	l, err := scanListing(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Listing{}, domain.ErrNotFound
	}
	return l, err
}

// ByInterest lists classes of one interest, most occupied first.
func (r *Repository) ByInterest(ctx context.Context, interestID int64) ([]Listing, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT"+listingColumns+listingFrom+
		" WHERE c.interest_id = $1 ORDER BY 13 DESC, c.id DESC", interestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Listing{}
	for rows.Next() {
		l, err := scanListing(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// Create inserts a class.
func (r *Repository) Create(ctx context.Context, c *Class) error {
	var instructor any
	if c.InstructorID != "" {
		instructor = c.InstructorID
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO classes (name, description, start_date, end_date, capacity, active, interest_id, instructor_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at
	`, c.Name, c.Description, c.StartDate, c.EndDate, c.Capacity, c.Active, c.InterestID, instructor)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		if store.IsForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

// InterestCounts lists interests that have classes, most classes first.
// keywords restricts to interests whose name contains any of them.
func (r *Repository) InterestCounts(ctx context.Context, keywords []string, limit int) ([]InterestCount, error) {
	query := `
		SELECT i.id, i.name, i.description, COUNT(c.id) AS class_count
		FROM interests i
		JOIN classes c ON c.interest_id = i.id`
	var args []any
	if len(keywords) > 0 {
		ors := lo.Map(keywords, func(k string, _ int) string {
			args = append(args, "%"+escapeLike(k)+"%")
			return "i.name ILIKE " + placeholder(args)
		})
		query += " WHERE (" + strings.Join(ors, " OR ") + ")"
	}
	args = append(args, limit)
	query += " GROUP BY i.id HAVING COUNT(c.id) > 0 ORDER BY class_count DESC, i.name ASC LIMIT " + placeholder(args)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []InterestCount{}
	for rows.Next() {
		var ic InterestCount
		if err := rows.Scan(&ic.ID, &ic.Name, &ic.Description, &ic.ClassCount); err != nil {
			return nil, err
		}
		res = append(res, ic)
	}
	return res, rows.Err()
}

// Interest returns one interest with its class count.
func (r *Repository) Interest(ctx context.Context, id int64) (InterestCount, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT i.id, i.name, i.description, (SELECT COUNT(*) FROM classes c WHERE c.interest_id = i.id)
		FROM interests i WHERE i.id = $1
	`, id)
	var ic InterestCount
	if err := row.Scan(&ic.ID, &ic.Name, &ic.Description, &ic.ClassCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return InterestCount{}, domain.ErrNotFound
		}
		return InterestCount{}, err
	}
	return ic, nil
}

// Stats counts classes, members, interests and distinct participants.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM classes),
			(SELECT COUNT(*) FROM members),
			(SELECT COUNT(*) FROM interests),
			(SELECT COUNT(DISTINCT member_id) FROM enrollments WHERE status <> 'cancelled')
	`).Scan(&s.Classes, &s.Members, &s.Interests, &s.Participants)
	return s, err
}
