package member

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"meeting/internal/domain"
)

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	Create(ctx context.Context, m *Member) error
	Get(ctx context.Context, id string) (Member, error)
	Interests(ctx context.Context, memberID string) ([]Interest, error)
	AddInterest(ctx context.Context, memberID string, interestID int64) error
}

// Service handles sign-up and credential checks.
type Service struct {
	store   Store
	now     domain.Clock
	loc     *time.Location
	timeout time.Duration
	cost    int
}

// NewService creates a member service. A zero timeout disables the deadline.
func NewService(store Store, now domain.Clock, loc *time.Location, timeout time.Duration) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now, loc: loc, timeout: timeout, cost: bcrypt.DefaultCost}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Register validates the form, hashes the password and stores the member.
func (s *Service) Register(ctx context.Context, reg Registration) (Member, error) {
	m, err := reg.Validate(domain.Today(s.now(), s.loc))
	if err != nil {
		return Member{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return Member{}, domain.AsStorage(err)
	}
	m.PasswordHash = string(hash)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.Create(ctx, &m); err != nil {
		if !domain.Known(err) {
			log.Printf("[member] create %s: %v", m.ID, err)
		}
		return Member{}, domain.AsStorage(err)
	}
	return m, nil
}

// Authenticate checks credentials. Unknown ids, wrong passwords and inactive
// members all yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, accountID, password string) (Member, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	m, err := s.store.Get(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return Member{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		log.Printf("[member] lookup %s: %v", accountID, err)
		return Member{}, domain.AsStorage(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)) != nil || !m.Active {
		return Member{}, domain.ErrInvalidCredentials
	}
	return m, nil
}

// Get loads a member by id.
func (s *Service) Get(ctx context.Context, id string) (Member, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	m, err := s.store.Get(ctx, id)
	return m, domain.AsStorage(err)
}

// Interests lists what a member follows.
func (s *Service) Interests(ctx context.Context, id string) ([]Interest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.store.Interests(ctx, id)
	return res, domain.AsStorage(err)
}

// FollowInterest adds an interest to the caller's profile.
func (s *Service) FollowInterest(ctx context.Context, id domain.Identity, interestID int64) error {
	if err := id.Require(domain.CapEnroll); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return domain.AsStorage(s.store.AddInterest(ctx, id.MemberID, interestID))
}
