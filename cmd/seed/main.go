package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"math/rand"
	"time"
	_ "time/tzdata"

	"golang.org/x/crypto/bcrypt"

	"meeting/internal/config"
	"meeting/internal/domain"
	"meeting/internal/store"
)

// Seed fills the database with sample interests, members, classes and activity.
func main() {
	var (
		members  = flag.Int("members", 30, "number of members to create")
		classes  = flag.Int("classes", 50, "number of classes to create")
		wipe     = flag.Bool("clear", false, "delete existing data first")
		password = flag.String("password", "password123", "password for every sample member")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	cfg := config.Load()
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := store.Migrate(ctx, db.Client); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	g := &generator{rnd: rand.New(rand.NewSource(*seed)), today: domain.Today(time.Now(), cfg.Location())}
	p := g.generate(*members, *classes)

	err = store.InTx(ctx, db.Client, func(tx *sql.Tx) error {
		if *wipe {
			log.Println("[seed] clearing existing data")
			if err := clearAll(ctx, tx); err != nil {
				return err
			}
		}
		return write(ctx, tx, p, string(hash))
	})
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}

	log.Printf("[seed] interests=%d members=%d classes=%d enrollments=%d follows=%d posts=%d attendance=%d",
		len(interestNames), len(p.Members), len(p.Classes), len(p.Enrollments), len(p.Follows), len(p.Posts), len(p.Attendance))
}

func clearAll(ctx context.Context, q store.Querier) error {
	_, err := q.ExecContext(ctx, `
		TRUNCATE attendance_records, posts, enrollments, member_interests, classes, members, interests
		RESTART IDENTITY CASCADE
	`)
	return err
}

func write(ctx context.Context, q store.Querier, p plan, passwordHash string) error {
	// Interests are shared with existing data, so upsert and read back ids.
	rows, err := q.QueryContext(ctx, `
		INSERT INTO interests (name)
		SELECT unnest($1::text[])
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name
	`, interestNames)
	if err != nil {
		return err
	}
	interestIDs := map[string]int64{}
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return err
		}
		interestIDs[name] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range p.Members {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO members (id, password_hash, account_type, name, phone, email, birth)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT DO NOTHING
		`, m.ID, passwordHash, string(m.Account), m.Name, m.Phone, m.Email, m.Birth); err != nil {
			return err
		}
	}

	classIDs := make([]int64, len(p.Classes))
	for i, c := range p.Classes {
		var instructor sql.NullString
		if c.Instructor != "" {
			instructor = sql.NullString{String: c.Instructor, Valid: true}
		}
		err := q.QueryRowContext(ctx, `
			INSERT INTO classes (name, start_date, end_date, capacity, interest_id, instructor_id)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, c.Name, c.Start, c.End, c.Capacity, interestIDs[interestNames[c.Interest]], instructor).Scan(&classIDs[i])
		if err != nil {
			return err
		}
	}

	for _, e := range p.Enrollments {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO enrollments (id, member_id, class_id, status, created_at)
			VALUES ($1,$2,$3,'approved',$4)
		`, e.ID, e.MemberID, classIDs[e.Class], e.CreatedAt); err != nil {
			return err
		}
	}

	for _, f := range p.Follows {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO member_interests (member_id, interest_id) VALUES ($1,$2)
			ON CONFLICT DO NOTHING
		`, f.MemberID, interestIDs[interestNames[f.Interest]]); err != nil {
			return err
		}
	}

	for _, post := range p.Posts {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO posts (class_id, author_id, title, content, category, views, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
		`, classIDs[post.Class], post.AuthorID, post.Title, post.Content, string(post.Category), post.Views, post.CreatedAt); err != nil {
			return err
		}
	}

	for _, a := range p.Attendance {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO attendance_records (id, enrollment_id, attend_date, status)
			VALUES ($1,$2,$3,$4)
		`, a.ID, a.EnrollmentID, a.Date, string(a.Status)); err != nil {
			return err
		}
	}
	return nil
}
