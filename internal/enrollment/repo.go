package enrollment

import (
	"context"
	"database/sql"
	"errors"

	"meeting/internal/domain"
	"meeting/internal/store"
)

// Repository is the Postgres Store.
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

// ListForMember joins enrollments with their classes.
func (r *Repository) ListForMember(ctx context.Context, memberID string) ([]MemberEnrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.member_id, e.class_id, e.status, e.created_at, c.name, c.start_date, c.end_date
		FROM enrollments e
		JOIN classes c ON c.id = e.class_id
		WHERE e.member_id = $1
		ORDER BY e.created_at DESC
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []MemberEnrollment{}
	for rows.Next() {
		var me MemberEnrollment
		if err := rows.Scan(&me.ID, &me.MemberID, &me.ClassID, &me.Status, &me.CreatedAt, &me.ClassName, &me.StartDate, &me.EndDate); err != nil {
			return nil, err
		}
		me.StartDate = domain.DateOnly(me.StartDate)
		me.EndDate = domain.DateOnly(me.EndDate)
		res = append(res, me)
	}
	return res, rows.Err()
}

type pgTx struct {
	q store.Querier
}

func (t *pgTx) LockClass(ctx context.Context, classID int64) (Seat, error) {
	var s Seat
	err := t.q.QueryRowContext(ctx, `
		SELECT id, start_date, end_date, capacity, active
		FROM classes WHERE id = $1
		FOR UPDATE
	`, classID).Scan(&s.ClassID, &s.StartDate, &s.EndDate, &s.Capacity, &s.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return Seat{}, domain.ErrNotFound
	}
	if err != nil {
		return Seat{}, err
	}
	s.StartDate = domain.DateOnly(s.StartDate)
	s.EndDate = domain.DateOnly(s.EndDate)
	return s, nil
}

func (t *pgTx) HasActive(ctx context.Context, memberID string, classID int64) (bool, error) {
	var exists bool
	err := t.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE member_id = $1 AND class_id = $2 AND status <> 'cancelled'
		)
	`, memberID, classID).Scan(&exists)
	return exists, err
}

func (t *pgTx) CountActive(ctx context.Context, classID int64) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT id) FROM enrollments
		WHERE class_id = $1 AND status <> 'cancelled'
	`, classID).Scan(&n)
	return n, err
}

func (t *pgTx) Insert(ctx context.Context, e *Enrollment) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO enrollments (id, member_id, class_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, e.ID, e.MemberID, e.ClassID, string(e.Status), e.CreatedAt)
	switch {
	case store.IsUniqueViolation(err, store.ConstraintActiveEnrollment):
		return domain.ErrAlreadyEnrolled
	case store.IsForeignKeyViolation(err):
		return domain.ErrNotFound
	}
	return err
}

func (t *pgTx) GetForUpdate(ctx context.Context, id string) (Enrollment, error) {
	var e Enrollment
	err := t.q.QueryRowContext(ctx, `
		SELECT id, member_id, class_id, status, created_at
		FROM enrollments WHERE id = $1
		FOR UPDATE
	`, id).Scan(&e.ID, &e.MemberID, &e.ClassID, &e.Status, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, domain.ErrNotFound
	}
	return e, err
}

func (t *pgTx) SetStatus(ctx context.Context, id string, s Status) error {
	_, err := t.q.ExecContext(ctx, `UPDATE enrollments SET status = $2 WHERE id = $1`, id, string(s))
	return err
}
