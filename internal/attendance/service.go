package attendance

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"meeting/internal/domain"
	"meeting/internal/metrics"
)

// Tx is the work done while the class row is locked.
type Tx interface {
	LockClass(ctx context.Context, classID int64) (ClassRef, error)
	ActiveEnrollmentIDs(ctx context.Context, classID int64) ([]string, error)
	DeleteForDate(ctx context.Context, classID int64, date time.Time) (int, error)
	Insert(ctx context.Context, records []Record) error
}

// Store opens transactions and serves reads.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	Class(ctx context.Context, classID int64) (ClassRef, error)
	Sheet(ctx context.Context, classID int64, date time.Time) ([]SheetRow, error)
	History(ctx context.Context, memberID string, limit int) ([]HistoryEntry, error)
}

// Recorder replaces attendance sets per class and date.
type Recorder struct {
	store        Store
	now          domain.Clock
	loc          *time.Location
	lookbackDays int
	timeout      time.Duration
	metrics      *metrics.Metrics
}

// NewRecorder creates a recorder. lookbackDays of 0 accepts any past date.
func NewRecorder(store Store, now domain.Clock, loc *time.Location, lookbackDays int, timeout time.Duration, m *metrics.Metrics) *Recorder {
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{store: store, now: now, loc: loc, lookbackDays: lookbackDays, timeout: timeout, metrics: m}
}

func canRecord(id domain.Identity, class ClassRef) error {
	if err := id.Require(domain.CapRecordAttendance); err != nil {
		return err
	}
	if id.Account.Can(domain.CapManageAnyClass) || class.InstructorID == id.MemberID {
		return nil
	}
	return domain.ErrUnauthorized
}

func (r *Recorder) checkDate(date time.Time) error {
	today := domain.Today(r.now(), r.loc)
	if date.After(today) {
		return domain.ErrAttendDateInFuture
	}
	if r.lookbackDays > 0 && date.Before(today.AddDate(0, 0, -r.lookbackDays)) {
		return domain.ErrAttendDateTooOld
	}
	return nil
}

// Record deletes every record of the class on sub.Date and writes one row per
// submitted enrollment, all in one transaction. Replaying a submission leaves
// the same rows.
func (r *Recorder) Record(ctx context.Context, id domain.Identity, sub Submission) (res RecordResult, err error) {
	defer func() { r.metrics.Attendance(err) }()

	if err := id.Require(domain.CapRecordAttendance); err != nil {
		return RecordResult{}, err
	}
	sub.Date = domain.DateOnly(sub.Date)
	if err := sub.validate(); err != nil {
		return RecordResult{}, err
	}
	if err := r.checkDate(sub.Date); err != nil {
		return RecordResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	now := r.now().UTC()

	err = r.store.InTx(ctx, func(tx Tx) error {
		class, err := tx.LockClass(ctx, sub.ClassID)
		if err != nil {
			return err
		}
		if err := canRecord(id, class); err != nil {
			return err
		}
		active, err := tx.ActiveEnrollmentIDs(ctx, sub.ClassID)
		if err != nil {
			return err
		}
		submitted := lo.Keys(sub.Statuses)
		if foreign := lo.Without(submitted, active...); len(foreign) > 0 {
			return domain.ErrForeignEnrollment
		}
		removed, err := tx.DeleteForDate(ctx, sub.ClassID, sub.Date)
		if err != nil {
			return err
		}
		records := lo.Map(submitted, func(enrollmentID string, _ int) Record {
			return Record{
				ID:           uuid.NewString(),
				EnrollmentID: enrollmentID,
				Date:         sub.Date,
				Status:       sub.Statuses[enrollmentID],
				Notes:        sub.Notes[enrollmentID],
				CreatedAt:    now,
			}
		})
		if err := tx.Insert(ctx, records); err != nil {
			return err
		}
		res = RecordResult{ClassID: sub.ClassID, Date: sub.Date, Removed: removed, Written: len(records)}
		return nil
	})
	if err != nil {
		return RecordResult{}, r.fail("record", err)
	}
	return res, nil
}

// Sheet lists the class roster with the statuses recorded on date.
func (r *Recorder) Sheet(ctx context.Context, id domain.Identity, classID int64, date time.Time) ([]SheetRow, error) {
	if err := id.Require(domain.CapRecordAttendance); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	class, err := r.store.Class(ctx, classID)
	if err != nil {
		return nil, r.fail("sheet", err)
	}
	if err := canRecord(id, class); err != nil {
		return nil, err
	}
	rows, err := r.store.Sheet(ctx, classID, domain.DateOnly(date))
	if err != nil {
		return nil, r.fail("sheet", err)
	}
	return rows, nil
}

// History returns a member's latest records.
func (r *Recorder) History(ctx context.Context, memberID string, limit int) ([]HistoryEntry, error) {
	if limit < 1 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.store.History(ctx, memberID, limit)
	if err != nil {
		return nil, r.fail("history", err)
	}
	return res, nil
}

func (r *Recorder) fail(op string, err error) error {
	if !domain.Known(err) {
		log.Printf("[attendance] %s: %v", op, err)
	}
	return domain.AsStorage(err)
}
