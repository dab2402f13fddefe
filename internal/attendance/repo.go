package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"meeting/internal/domain"
	"meeting/internal/store"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InTx runs fn inside a read-committed transaction.
func (r *Repository) InTx(ctx context.Context, fn func(Tx) error) error {
	return store.InTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&pgTx{q: tx})
	})
}

func classRef(ctx context.Context, q store.Querier, classID int64, lock bool) (ClassRef, error) {
	query := `SELECT id, COALESCE(instructor_id, '') FROM classes WHERE id = $1`
	if lock {
		query += " FOR UPDATE"
	}
	var c ClassRef
	err := q.QueryRowContext(ctx, query, classID).Scan(&c.ID, &c.InstructorID)
	if errors.Is(err, sql.ErrNoRows) {
		return ClassRef{}, domain.ErrNotFound
	}
	return c, err
}

// Class returns the class reference without locking it.
func (r *Repository) Class(ctx context.Context, classID int64) (ClassRef, error) {
	return classRef(ctx, r.db, classID, false)
}

// Sheet lists active enrollments of a class with the record for date, if any.
func (r *Repository) Sheet(ctx context.Context, classID int64, date time.Time) ([]SheetRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.member_id, m.name, a.status, COALESCE(a.notes, '')
		FROM enrollments e
		JOIN members m ON m.id = e.member_id
		LEFT JOIN attendance_records a ON a.enrollment_id = e.id AND a.attend_date = $2
		WHERE e.class_id = $1 AND e.status <> 'cancelled'
		ORDER BY m.name, e.id
	`, classID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []SheetRow{}
	for rows.Next() {
		var (
			row    SheetRow
			status sql.NullString
		)
		if err := rows.Scan(&row.EnrollmentID, &row.MemberID, &row.MemberName, &status, &row.Notes); err != nil {
			return nil, err
		}
		if status.Valid {
			s := Status(status.String)
			row.Status = &s
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// History returns a member's latest records across classes.
func (r *Repository) History(ctx context.Context, memberID string, limit int) ([]HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.enrollment_id, a.attend_date, a.status, a.notes, a.created_at, c.id, c.name
		FROM attendance_records a
		JOIN enrollments e ON e.id = a.enrollment_id
		JOIN classes c ON c.id = e.class_id
		WHERE e.member_id = $1
		ORDER BY a.attend_date DESC, c.name
		LIMIT $2
	`, memberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []HistoryEntry{}
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.EnrollmentID, &h.Date, &h.Status, &h.Notes, &h.CreatedAt, &h.ClassID, &h.ClassName); err != nil {
			return nil, err
		}
		h.Date = domain.DateOnly(h.Date)
		res = append(res, h)
	}
	return res, rows.Err()
}

type pgTx struct {
	q store.Querier
}

func (t *pgTx) LockClass(ctx context.Context, classID int64) (ClassRef, error) {
	return classRef(ctx, t.q, classID, true)
}

func (t *pgTx) ActiveEnrollmentIDs(ctx context.Context, classID int64) ([]string, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id FROM enrollments WHERE class_id = $1 AND status <> 'cancelled'
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *pgTx) DeleteForDate(ctx context.Context, classID int64, date time.Time) (int, error) {
	res, err := t.q.ExecContext(ctx, `
		DELETE FROM attendance_records a
		USING enrollments e
		WHERE a.enrollment_id = e.id AND e.class_id = $1 AND a.attend_date = $2
	`, classID, date)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Insert writes all records in one statement.
func (t *pgTx) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	var (
		sb   strings.Builder
		args = make([]any, 0, len(records)*6)
	)
	sb.WriteString("INSERT INTO attendance_records (id, enrollment_id, attend_date, status, notes, created_at) VALUES ")
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 1; j <= 6; j++ {
			if j > 1 {
				sb.WriteString(",")
			}
			sb.WriteString("$" + strconv.Itoa(i*6+j))
		}
		sb.WriteString(")")
		args = append(args, rec.ID, rec.EnrollmentID, rec.Date, string(rec.Status), rec.Notes, rec.CreatedAt)
	}
	_, err := t.q.ExecContext(ctx, sb.String(), args...)
	return err
}
