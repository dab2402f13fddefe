package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"meeting/internal/domain"
	"meeting/internal/store"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	db, err := store.NewDB(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(context.Background(), db.Client); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.Client
}

// seedClass inserts a class starting tomorrow and n members; everything is
// removed when the test ends.
func seedClass(t *testing.T, db *sql.DB, capacity, members int) (int64, []string) {
	t.Helper()
	ctx := context.Background()
	today := domain.Today(time.Now(), time.UTC)
	var classID int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO classes (name, start_date, end_date, capacity)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, "it-"+uuid.NewString()[:8], today.AddDate(0, 0, 2), today.AddDate(0, 1, 0), capacity).Scan(&classID)
	if err != nil {
		t.Fatalf("seed class: %v", err)
	}
	prefix := uuid.NewString()[:6]
	ids := make([]string, members)
	for i := range ids {
		ids[i] = fmt.Sprintf("it%s%02d", prefix, i)
		_, err := db.ExecContext(ctx, `
			INSERT INTO members (id, password_hash, name, phone, email, birth)
			VALUES ($1, 'x', 'Tester', $2, $3, '1990-01-01')
		`, ids[i], fmt.Sprintf("010-%s-%04d", prefix[:4], i), ids[i]+"@example.com")
		if err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, classID)
		for _, id := range ids {
			_, _ = db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
		}
	})
	return classID, ids
}

func TestPostgresCapacityUnderConcurrency(t *testing.T) {
	db := openTestDB(t)
	classID, members := seedClass(t, db, 3, 12)
	svc := NewService(NewRepository(db), Policy{Timeout: 10 * time.Second}, nil, time.UTC, nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for _, m := range members {
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			_, err := svc.Enroll(context.Background(), member(m), classID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrCapacityExceeded):
				full++
			default:
				t.Errorf("unexpected: %v", err)
			}
		}(m)
	}
	wg.Wait()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND status = 'approved'`, classID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if ok != 3 || full != 9 || n != 3 {
		t.Fatalf("ok=%d full=%d rows=%d", ok, full, n)
	}
}

func TestPostgresDuplicateBackstop(t *testing.T) {
	db := openTestDB(t)
	classID, members := seedClass(t, db, 5, 1)
	repo := NewRepository(db)
	ctx := context.Background()

	insert := func() error {
		return repo.InTx(ctx, func(tx Tx) error {
			return tx.Insert(ctx, &Enrollment{
				ID: uuid.NewString(), MemberID: members[0], ClassID: classID,
				Status: StatusApproved, CreatedAt: time.Now(),
			})
		})
	}
	if err := insert(); err != nil {
		t.Fatal(err)
	}
	if err := insert(); !errors.Is(err, domain.ErrAlreadyEnrolled) {
		t.Fatalf("unique index not mapped: %v", err)
	}

	list, err := repo.ListForMember(ctx, members[0])
	if err != nil || len(list) != 1 || list[0].ClassID != classID {
		t.Fatalf("list = %+v, %v", list, err)
	}
}
