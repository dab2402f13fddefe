package member

import (
	"context"
	"database/sql"
	"errors"

	"meeting/internal/domain"
	"meeting/internal/store"
)

// Repository persists members in Postgres.
type Repository struct {
	db store.Querier
}

// NewRepository creates a repo.
func NewRepository(db store.Querier) *Repository {
	return &Repository{db: db}
}

// Create inserts m. Any unique collision on id, email or phone is ErrDuplicateAccount.
func (r *Repository) Create(ctx context.Context, m *Member) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO members (id, password_hash, account_type, name, phone, email, birth, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING joined_at
	`, m.ID, m.PasswordHash, string(m.AccountType), m.Name, m.Phone, m.Email, m.Birth, m.Active)
	if err := row.Scan(&m.JoinedAt); err != nil {
		if store.IsUniqueViolation(err, "") {
			return domain.ErrDuplicateAccount
		}
		return err
	}
	return nil
}

// Get returns a member by account id.
func (r *Repository) Get(ctx context.Context, id string) (Member, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, password_hash, account_type, name, phone, email, birth, active, joined_at
		FROM members WHERE id = $1
	`, id)
	var (
		m       Member
		account string
	)
	if err := row.Scan(&m.ID, &m.PasswordHash, &account, &m.Name, &m.Phone, &m.Email, &m.Birth, &m.Active, &m.JoinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, domain.ErrNotFound
		}
		return Member{}, err
	}
	m.AccountType = domain.AccountType(account)
	return m, nil
}

// Interests lists the topics a member follows.
func (r *Repository) Interests(ctx context.Context, memberID string) ([]Interest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.name
		FROM member_interests mi
		JOIN interests i ON i.id = mi.interest_id
		WHERE mi.member_id = $1
		ORDER BY i.name
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Interest
	for rows.Next() {
		var i Interest
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

// AddInterest links a member to an interest; repeats are ignored.
func (r *Repository) AddInterest(ctx context.Context, memberID string, interestID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO member_interests (member_id, interest_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, memberID, interestID)
	if store.IsForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	return err
}
