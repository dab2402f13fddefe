package enrollment

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"meeting/internal/domain"
	"meeting/internal/metrics"
)

// Status of an enrollment. Anything but cancelled counts as active.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCancelled Status = "cancelled"
)

// Enrollment joins a member to a class.
type Enrollment struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id"`
	ClassID   int64     `json:"class_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Seat is the locked view of a class the workflow decides on.
type Seat struct {
	ClassID   int64
	StartDate time.Time
	EndDate   time.Time
	Capacity  int
	Active    bool
}

// Result is a successful enrollment and the class occupancy after it.
type Result struct {
	Enrollment Enrollment `json:"enrollment"`
	Occupancy  int        `json:"occupancy"`
	Capacity   int        `json:"capacity"`
}

// MemberEnrollment is an enrollment with its class, for profile pages.
type MemberEnrollment struct {
	Enrollment
	ClassName string    `json:"class_name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Tx is the work done while the class row is locked.
type Tx interface {
	// LockClass reads the class row FOR UPDATE. Missing classes are ErrNotFound.
	LockClass(ctx context.Context, classID int64) (Seat, error)
	HasActive(ctx context.Context, memberID string, classID int64) (bool, error)
	CountActive(ctx context.Context, classID int64) (int, error)
	// Insert stores e; a clash on the active (member, class) index is ErrAlreadyEnrolled.
	Insert(ctx context.Context, e *Enrollment) error
	GetForUpdate(ctx context.Context, id string) (Enrollment, error)
	SetStatus(ctx context.Context, id string, s Status) error
}

// Store opens transactions and serves reads.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	ListForMember(ctx context.Context, memberID string) ([]MemberEnrollment, error)
}

// Policy holds the configurable enrollment rules.
type Policy struct {
	// AllowSameDay lets members join on the start date itself.
	AllowSameDay bool
	Timeout      time.Duration
}

// Service registers members into classes.
type Service struct {
	store   Store
	policy  Policy
	now     domain.Clock
	loc     *time.Location
	metrics *metrics.Metrics
}

// NewService creates an enrollment service. m may be nil.
func NewService(store Store, policy Policy, now domain.Clock, loc *time.Location, m *metrics.Metrics) *Service {
	if now == nil {
		now = time.Now
	}
	if policy.Timeout <= 0 {
		policy.Timeout = 5 * time.Second
	}
	return &Service{store: store, policy: policy, now: now, loc: loc, metrics: m}
}

// checkTiming applies the calendar rules in order: ended, then started.
func (s *Service) checkTiming(seat Seat, today time.Time) error {
	if !seat.Active || today.After(seat.EndDate) {
		return domain.ErrClassClosed
	}
	if today.Before(seat.StartDate) {
		return nil
	}
	if s.policy.AllowSameDay && today.Equal(seat.StartDate) {
		return nil
	}
	return domain.ErrClassAlreadyStarted
}

// Enroll registers the caller into classID. The class row stays locked from
// the first check until commit, so concurrent attempts on one class are
// serialized and capacity can never be exceeded.
func (s *Service) Enroll(ctx context.Context, id domain.Identity, classID int64) (res Result, err error) {
	defer func() { s.metrics.Enrollment(err) }()

	if err := id.Require(domain.CapEnroll); err != nil {
		return Result{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()
	today := domain.Today(s.now(), s.loc)

	err = s.store.InTx(ctx, func(tx Tx) error {
		seat, err := tx.LockClass(ctx, classID)
		if err != nil {
			return err
		}
		if err := s.checkTiming(seat, today); err != nil {
			return err
		}
		dup, err := tx.HasActive(ctx, id.MemberID, classID)
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrAlreadyEnrolled
		}
		count, err := tx.CountActive(ctx, classID)
		if err != nil {
			return err
		}
		if count >= seat.Capacity {
			return domain.ErrCapacityExceeded
		}
		e := Enrollment{
			ID:        uuid.NewString(),
			MemberID:  id.MemberID,
			ClassID:   classID,
			Status:    StatusApproved,
			CreatedAt: s.now().UTC(),
		}
		if err := tx.Insert(ctx, &e); err != nil {
			return err
		}
		res = Result{Enrollment: e, Occupancy: count + 1, Capacity: seat.Capacity}
		return nil
	})
	if err != nil {
		return Result{}, s.fail("enroll", err)
	}
	return res, nil
}

// Cancel withdraws an active enrollment. Only its member or an admin may.
func (s *Service) Cancel(ctx context.Context, id domain.Identity, enrollmentID string) (Enrollment, error) {
	if !id.Authenticated() {
		return Enrollment{}, domain.ErrUnauthenticated
	}
	if _, err := uuid.Parse(enrollmentID); err != nil {
		return Enrollment{}, domain.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()

	var out Enrollment
	err := s.store.InTx(ctx, func(tx Tx) error {
		e, err := tx.GetForUpdate(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if !id.Owns(e.MemberID) {
			return domain.ErrUnauthorized
		}
		if e.Status != StatusCancelled {
			if err := tx.SetStatus(ctx, e.ID, StatusCancelled); err != nil {
				return err
			}
			e.Status = StatusCancelled
		}
		out = e
		return nil
	})
	if err != nil {
		return Enrollment{}, s.fail("cancel", err)
	}
	return out, nil
}

// ListForMember returns a member's enrollments, newest first.
func (s *Service) ListForMember(ctx context.Context, memberID string) ([]MemberEnrollment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()
	res, err := s.store.ListForMember(ctx, memberID)
	if err != nil {
		return nil, s.fail("list", err)
	}
	return res, nil
}

func (s *Service) fail(op string, err error) error {
	if !domain.Known(err) {
		log.Printf("[enrollment] %s: %v", op, err)
	}
	return domain.AsStorage(err)
}
