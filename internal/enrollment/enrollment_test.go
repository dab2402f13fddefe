package enrollment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"meeting/internal/domain"
	"meeting/internal/metrics"
)

// memStore holds one lock for the whole store, standing in for the class row
// lock, and restores its rows when a transaction fails.
type memStore struct {
	txLock sync.Mutex

	mu      sync.Mutex
	classes map[int64]Seat
	rows    []Enrollment
	failOn  string
}

func newMemStore() *memStore {
	return &memStore{classes: map[int64]Seat{}}
}

func (m *memStore) InTx(ctx context.Context, fn func(Tx) error) error {
	m.txLock.Lock()
	defer m.txLock.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	snapshot := append([]Enrollment(nil), m.rows...)
	m.mu.Unlock()

	if err := fn(&memTx{m: m}); err != nil {
		m.mu.Lock()
		m.rows = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) ListForMember(_ context.Context, memberID string) ([]MemberEnrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []MemberEnrollment
	for _, e := range m.rows {
		if e.MemberID == memberID {
			res = append(res, MemberEnrollment{Enrollment: e})
		}
	}
	return res, nil
}

func (m *memStore) approved(classID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.rows {
		if e.ClassID == classID && e.Status == StatusApproved {
			n++
		}
	}
	return n
}

type memTx struct{ m *memStore }

func (t *memTx) fail(op string) error {
	if t.m.failOn == op {
		return fmt.Errorf("%s: connection reset by peer", op)
	}
	return nil
}

func (t *memTx) LockClass(_ context.Context, classID int64) (Seat, error) {
	if err := t.fail("lock"); err != nil {
		return Seat{}, err
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	s, ok := t.m.classes[classID]
	if !ok {
		return Seat{}, domain.ErrNotFound
	}
	return s, nil
}

func (t *memTx) HasActive(_ context.Context, memberID string, classID int64) (bool, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, e := range t.m.rows {
		if e.MemberID == memberID && e.ClassID == classID && e.Status != StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CountActive(_ context.Context, classID int64) (int, error) {
	if err := t.fail("count"); err != nil {
		return 0, err
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	n := 0
	for _, e := range t.m.rows {
		if e.ClassID == classID && e.Status != StatusCancelled {
			n++
		}
	}
	// Widen the window between the count and the insert.
	time.Sleep(time.Millisecond)
	return n, nil
}

func (t *memTx) Insert(_ context.Context, e *Enrollment) error {
	if err := t.fail("insert"); err != nil {
		return err
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.rows = append(t.m.rows, *e)
	return nil
}

func (t *memTx) GetForUpdate(_ context.Context, id string) (Enrollment, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, e := range t.m.rows {
		if e.ID == id {
			return e, nil
		}
	}
	return Enrollment{}, domain.ErrNotFound
}

func (t *memTx) SetStatus(_ context.Context, id string, s Status) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for i := range t.m.rows {
		if t.m.rows[i].ID == id {
			t.m.rows[i].Status = s
		}
	}
	return nil
}

// Tests run on 2024-01-10 in Seoul.
var now = time.Date(2024, 1, 10, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))

func day(offset int) time.Time {
	return time.Date(2024, 1, 10+offset, 0, 0, 0, 0, time.UTC)
}

func member(id string) domain.Identity {
	return domain.Identity{MemberID: id, Account: domain.AccountStudent, Active: true}
}

func newTestService(st Store, policy Policy) *Service {
	return NewService(st, policy, func() time.Time { return now }, now.Location(), nil)
}

func TestEnrollConcurrentCapacity(t *testing.T) {
	tests := []struct {
		capacity, callers int
	}{
		{2, 3},
		{5, 40},
		{1, 10},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("capacity %d callers %d", tt.capacity, tt.callers), func(t *testing.T) {
			st := newMemStore()
			st.classes[1] = Seat{ClassID: 1, StartDate: day(1), EndDate: day(30), Capacity: tt.capacity, Active: true}
			svc := newTestService(st, Policy{})

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				ok, full int
			)
			for i := 0; i < tt.callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := svc.Enroll(context.Background(), member(fmt.Sprintf("member%02d", i)), 1)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case errors.Is(err, domain.ErrCapacityExceeded):
						full++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(i)
			}
			wg.Wait()

			if ok != tt.capacity || full != tt.callers-tt.capacity {
				t.Fatalf("ok=%d full=%d", ok, full)
			}
			if n := st.approved(1); n != tt.capacity {
				t.Fatalf("approved rows = %d", n)
			}
		})
	}
}

func TestEnrollReportsOccupancy(t *testing.T) {
	st := newMemStore()
	st.classes[1] = Seat{ClassID: 1, StartDate: day(1), EndDate: day(30), Capacity: 3, Active: true}
	svc := newTestService(st, Policy{})

	res, err := svc.Enroll(context.Background(), member("kim01"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Occupancy != 1 || res.Capacity != 3 || res.Enrollment.Status != StatusApproved || res.Enrollment.ID == "" {
		t.Fatalf("result = %+v", res)
	}
	res, _ = svc.Enroll(context.Background(), member("lee02"), 1)
	if res.Occupancy != 2 {
		t.Fatalf("occupancy = %d", res.Occupancy)
	}
}

func TestEnrollTwice(t *testing.T) {
	st := newMemStore()
	st.classes[1] = Seat{ClassID: 1, StartDate: day(1), EndDate: day(30), Capacity: 10, Active: true}
	svc := newTestService(st, Policy{})

	if _, err := svc.Enroll(context.Background(), member("kim01"), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Enroll(context.Background(), member("kim01"), 1); !errors.Is(err, domain.ErrAlreadyEnrolled) {
		t.Fatalf("expected already enrolled, got %v", err)
	}
	if n := st.approved(1); n != 1 {
		t.Fatalf("approved rows = %d", n)
	}
}

func TestEnrollPreconditionOrder(t *testing.T) {
	tests := []struct {
		name   string
		seat   *Seat
		policy Policy
		want   error
	}{
		{"missing class", nil, Policy{}, domain.ErrNotFound},
		{"ended", &Seat{StartDate: day(-30), EndDate: day(-1), Capacity: 5, Active: true}, Policy{}, domain.ErrClassClosed},
		{"inactive", &Seat{StartDate: day(1), EndDate: day(30), Capacity: 5}, Policy{}, domain.ErrClassClosed},
		{"ends today but started", &Seat{StartDate: day(-5), EndDate: day(0), Capacity: 5, Active: true}, Policy{}, domain.ErrClassAlreadyStarted},
		{"starts today", &Seat{StartDate: day(0), EndDate: day(30), Capacity: 5, Active: true}, Policy{}, domain.ErrClassAlreadyStarted},
		{"starts today, same day allowed", &Seat{StartDate: day(0), EndDate: day(30), Capacity: 5, Active: true}, Policy{AllowSameDay: true}, nil},
		{"started yesterday, same day allowed", &Seat{StartDate: day(-1), EndDate: day(30), Capacity: 5, Active: true}, Policy{AllowSameDay: true}, domain.ErrClassAlreadyStarted},
		{"full and started reports started", &Seat{StartDate: day(0), EndDate: day(30), Capacity: 0, Active: true}, Policy{}, domain.ErrClassAlreadyStarted},
		{"starts tomorrow", &Seat{StartDate: day(1), EndDate: day(30), Capacity: 5, Active: true}, Policy{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStore()
			if tt.seat != nil {
				tt.seat.ClassID = 1
				st.classes[1] = *tt.seat
			}
			svc := newTestService(st, tt.policy)
			_, err := svc.Enroll(context.Background(), member("kim01"), 1)
			if !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if tt.want != nil && st.approved(1) != 0 {
				t.Fatal("failed enrollment left a row")
			}
		})
	}
}

func TestEnrollIdentity(t *testing.T) {
	st := newMemStore()
	st.classes[1] = Seat{ClassID: 1, StartDate: day(1), EndDate: day(30), Capacity: 5, Active: true}
	svc := newTestService(st, Policy{})

	if _, err := svc.Enroll(context.Background(), domain.Identity{}, 1); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("anonymous: %v", err)
	}
	inactive := domain.Identity{MemberID: "kim01", Account: domain.AccountStudent}
	if _, err := svc.Enroll(context.Background(), inactive, 1); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("inactive: %v", err)
	}
}

func TestEnrollStorageFailures(t *testing.T) {
	for _, op := range []string{"lock", "count", "insert"} {
		t.Run(op, func(t *testing.T) {
			st := newMemStore()
			st.classes[1] = Seat{ClassID: 1, StartDate: day(1), EndDate: day(30), Capacity: 5, Active: true}
			st.failOn = op
			svc := newTestService(st, Policy{})
			_, err := svc.Enroll(context.Background(), member("kim01"), 1)
			if !errors.Is(err, domain.ErrStorage) {
				t.Fatalf("expected storage error, got %v", err)
			}
			if st.approved(1) != 0 {
				t.Fatal("partial state left behind")
			}
		})
	}
}

type blockingStore struct{ memStore }

func (b *blockingStore) InTx(ctx context.Context, _ func(Tx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestEnrollTimeoutIsStorageError(t *testing.T) {
	svc := newTestService(&blockingStore{}, Policy{Timeout: 20 * time.Millisecond})
	_, err := svc.Enroll(context.Background(), member("kim01"), 1)
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	st := newMemStore()
	st.classes[1] = Seat{ClassID: 1, StartDate: day(1), EndDate: day(30), Capacity: 1, Active: true}
	svc := newTestService(st, Policy{})
	ctx := context.Background()

	res, err := svc.Enroll(ctx, member("kim01"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Cancel(ctx, member("lee02"), res.Enrollment.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger cancel: %v", err)
	}
	if _, err := svc.Cancel(ctx, domain.Identity{}, res.Enrollment.ID); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("anonymous cancel: %v", err)
	}
	if _, err := svc.Cancel(ctx, member("kim01"), "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("bad id: %v", err)
	}

	got, err := svc.Cancel(ctx, member("kim01"), res.Enrollment.ID)
	if err != nil || got.Status != StatusCancelled {
		t.Fatalf("cancel: %+v %v", got, err)
	}
	// The seat is free again and the member may come back.
	if _, err := svc.Enroll(ctx, member("lee02"), 1); err != nil {
		t.Fatalf("seat not released: %v", err)
	}

	admin := domain.Identity{MemberID: "boss1", Account: domain.AccountAdmin, Active: true}
	list, _ := svc.ListForMember(ctx, "lee02")
	if _, err := svc.Cancel(ctx, admin, list[0].ID); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestEnrollMetrics(t *testing.T) {
	st := newMemStore()
	st.classes[1] = Seat{ClassID: 1, StartDate: day(1), EndDate: day(30), Capacity: 1, Active: true}
	reg := prometheus.NewRegistry()
	svc := NewService(st, Policy{}, func() time.Time { return now }, now.Location(), metrics.New(reg))

	_, _ = svc.Enroll(context.Background(), member("kim01"), 1)
	_, _ = svc.Enroll(context.Background(), member("lee02"), 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	outcomes := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "meeting_enrollment_attempts_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			outcomes[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	if outcomes["ok"] != 1 || outcomes["capacity_exceeded"] != 1 {
		t.Fatalf("outcomes = %v", outcomes)
	}
}
