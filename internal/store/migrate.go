package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Constraint names the repositories map to domain errors.
const (
	ConstraintActiveEnrollment = "enrollments_active_member_class_key"
	ConstraintMemberEmail      = "members_email_key"
	ConstraintMemberPhone      = "members_phone_key"
	ConstraintMemberPK         = "members_pkey"
)

const schema = `
CREATE TABLE IF NOT EXISTS members (
	id            TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	account_type  TEXT NOT NULL DEFAULT 'student'
	              CHECK (account_type IN ('student', 'instructor', 'admin')),
	name          TEXT NOT NULL,
	phone         TEXT NOT NULL,
	email         TEXT NOT NULL,
	birth         DATE NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	joined_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT members_email_key UNIQUE (email),
	CONSTRAINT members_phone_key UNIQUE (phone)
);

CREATE TABLE IF NOT EXISTS interests (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS member_interests (
	member_id   TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
	interest_id BIGINT NOT NULL REFERENCES interests(id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (member_id, interest_id)
);

CREATE TABLE IF NOT EXISTS classes (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	start_date    DATE NOT NULL,
	end_date      DATE NOT NULL,
	capacity      INTEGER NOT NULL DEFAULT 20 CHECK (capacity > 0),
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	interest_id   BIGINT REFERENCES interests(id) ON DELETE SET NULL,
	instructor_id TEXT REFERENCES members(id) ON DELETE SET NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (end_date > start_date)
);
CREATE INDEX IF NOT EXISTS idx_classes_interest ON classes(interest_id);

CREATE TABLE IF NOT EXISTS enrollments (
	id         UUID PRIMARY KEY,
	member_id  TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
	class_id   BIGINT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
	status     TEXT NOT NULL DEFAULT 'approved'
	           CHECK (status IN ('pending', 'approved', 'cancelled')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS enrollments_active_member_class_key
	ON enrollments(member_id, class_id) WHERE status <> 'cancelled';
CREATE INDEX IF NOT EXISTS idx_enrollments_class ON enrollments(class_id);

CREATE TABLE IF NOT EXISTS attendance_records (
	id            UUID PRIMARY KEY,
	enrollment_id UUID NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
	attend_date   DATE NOT NULL,
	status        TEXT NOT NULL
	              CHECK (status IN ('present', 'absent', 'late', 'excused')),
	notes         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (enrollment_id, attend_date)
);
CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance_records(attend_date);

CREATE TABLE IF NOT EXISTS posts (
	id         BIGSERIAL PRIMARY KEY,
	class_id   BIGINT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
	author_id  TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT 'general'
	           CHECK (category IN ('notice', 'review', 'general', 'question', 'event')),
	views      INTEGER NOT NULL DEFAULT 0,
	pinned     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_posts_class ON posts(class_id, pinned DESC, created_at DESC);
`

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
