package catalog

import (
	"context"
	"log"
	"time"

	"meeting/internal/domain"
	"meeting/internal/pagination"
)

// PageSize is the default number of classes per catalog page.
const PageSize = 12

// Store is the persistence the catalog needs; *Repository implements it.
type Store interface {
	Search(ctx context.Context, f Filter, limit, offset int) ([]Listing, int64, error)
	Get(ctx context.Context, id int64) (Listing, error)
	ByInterest(ctx context.Context, interestID int64) ([]Listing, error)
	Create(ctx context.Context, c *Class) error
	InterestCounts(ctx context.Context, keywords []string, limit int) ([]InterestCount, error)
	Interest(ctx context.Context, id int64) (InterestCount, error)
	Stats(ctx context.Context) (Stats, error)
}

// Page is one page of search results.
type Page struct {
	Items []Listing       `json:"items"`
	Meta  pagination.Meta `json:"meta"`
}

// Service is the read surface over classes plus class creation.
type Service struct {
	store   Store
	now     domain.Clock
	loc     *time.Location
	timeout time.Duration
}

// NewService creates a catalog service.
func NewService(store Store, now domain.Clock, loc *time.Location, timeout time.Duration) *Service {
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{store: store, now: now, loc: loc, timeout: timeout}
}

func (s *Service) today() time.Time { return domain.Today(s.now(), s.loc) }

func storageErr(op string, err error) error {
	if err != nil && !domain.Known(err) {
		log.Printf("[catalog] %s: %v", op, err)
	}
	return domain.AsStorage(err)
}

// Search filters, sorts and paginates classes.
func (s *Service) Search(ctx context.Context, f Filter, p pagination.Params) (Page, error) {
	f, err := f.Normalize()
	if err != nil {
		return Page{}, err
	}
	if p.Limit < 1 {
		p = pagination.New(p.Page, 0, PageSize)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, total, err := s.store.Search(ctx, f, p.Limit, p.Offset)
	if err != nil {
		return Page{}, storageErr("search", err)
	}
	today := s.today()
	for i := range items {
		items[i].derive(today)
	}
	return Page{Items: items, Meta: pagination.MetaFor(p, total)}, nil
}

// Get returns one class with its occupancy.
func (s *Service) Get(ctx context.Context, id int64) (Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return Listing{}, storageErr("get", err)
	}
	l.derive(s.today())
	return l, nil
}

// Create adds a class. Instructors always own what they create; admins may
// assign any instructor.
func (s *Service) Create(ctx context.Context, id domain.Identity, form NewClass) (Listing, error) {
	if err := id.Require(domain.CapManageClasses); err != nil {
		return Listing{}, err
	}
	c, err := form.Validate(s.today())
	if err != nil {
		return Listing{}, err
	}
	if c.InstructorID == "" || !id.Account.Can(domain.CapManageAnyClass) {
		c.InstructorID = id.MemberID
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Create(ctx, &c); err != nil {
		return Listing{}, storageErr("create", err)
	}
	l := Listing{Class: c}
	l.derive(s.today())
	return l, nil
}

// Interests lists interests with classes, optionally limited to a category.
func (s *Service) Interests(ctx context.Context, category string, limit int) ([]InterestCount, error) {
	f, err := Filter{Category: category}.Normalize()
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}
	keywords, _ := CategoryKeywords(f.Category)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.store.InterestCounts(ctx, keywords, limit)
	return res, storageErr("interests", err)
}

// InterestClasses returns an interest and its classes sorted by occupancy.
func (s *Service) InterestClasses(ctx context.Context, interestID int64) (InterestCount, []Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	interest, err := s.store.Interest(ctx, interestID)
	if err != nil {
		return InterestCount{}, nil, storageErr("interest", err)
	}
	items, err := s.store.ByInterest(ctx, interestID)
	if err != nil {
		return InterestCount{}, nil, storageErr("interest classes", err)
	}
	today := s.today()
	for i := range items {
		items[i].derive(today)
	}
	return interest, items, nil
}

// Stats returns site totals.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	st, err := s.store.Stats(ctx)
	return st, storageErr("stats", err)
}
