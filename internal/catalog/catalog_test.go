package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"meeting/internal/domain"
	"meeting/internal/pagination"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestFilterNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    Filter
		want  Filter
		field string
	}{
		{"defaults", Filter{}, Filter{Sort: SortRecent}, ""},
		{"trim and all", Filter{Keyword: "  요가 ", Category: "ALL", Sort: SortPopular}, Filter{Keyword: "요가", Sort: SortPopular}, ""},
		{"one char keyword", Filter{Keyword: "a"}, Filter{}, "keyword"},
		{"long keyword", Filter{Keyword: strings.Repeat("가", 101)}, Filter{}, "keyword"},
		{"unknown category", Filter{Category: "music"}, Filter{}, "category"},
		{"unknown sort", Filter{Sort: "oldest"}, Filter{}, "sort"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.field != "" {
				var v *domain.ValidationError
				if !errors.As(err, &v) || v.Field != tt.field {
					t.Fatalf("expected %s error, got %v", tt.field, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %+v, %v", got, err)
			}
		})
	}
}

func TestBuildWhere(t *testing.T) {
	where, args := buildWhere(Filter{})
	if where != "" || len(args) != 0 {
		t.Fatalf("empty filter produced %q %v", where, args)
	}

	where, args = buildWhere(Filter{Keyword: "100%_yoga", InterestID: 4})
	if where != " WHERE (c.name ILIKE $1 OR i.name ILIKE $1) AND c.interest_id = $2" {
		t.Fatalf("where = %q", where)
	}
	if args[0] != `%100\%\_yoga%` || args[1] != int64(4) {
		t.Fatalf("args = %v", args)
	}

	where, args = buildWhere(Filter{Category: "culture"})
	kw, _ := CategoryKeywords("culture")
	if len(args) != len(kw) {
		t.Fatalf("expected %d args, got %d", len(kw), len(args))
	}
	if !strings.HasPrefix(where, " WHERE (i.name ILIKE $1 OR i.name ILIKE $2") {
		t.Fatalf("where = %q", where)
	}
}

func TestOrderBy(t *testing.T) {
	if !strings.Contains(orderBy(SortPopular), "13 DESC") {
		t.Fatal("popular must sort by occupancy")
	}
	if orderBy(SortRecent) != " ORDER BY c.id DESC" {
		t.Fatal("recent must sort by newest id")
	}
}

func TestPhaseOn(t *testing.T) {
	c := Class{StartDate: date("2024-01-10"), EndDate: date("2024-02-10")}
	if c.PhaseOn(date("2024-01-09")) != PhaseUpcoming {
		t.Error("before start")
	}
	if c.PhaseOn(date("2024-01-10")) != PhaseInProgress || c.PhaseOn(date("2024-02-10")) != PhaseInProgress {
		t.Error("start and end days are in progress")
	}
	if c.PhaseOn(date("2024-02-11")) != PhaseEnded {
		t.Error("after end")
	}
}

func TestNewClassValidate(t *testing.T) {
	today := date("2024-01-01")
	base := NewClass{Name: "주말 요가", StartDate: "2024-01-10", EndDate: "2024-03-10"}

	c, err := base.Validate(today)
	if err != nil {
		t.Fatalf("valid form: %v", err)
	}
	if c.Capacity != defaultCapacity || !c.Active {
		t.Fatalf("defaults not applied: %+v", c)
	}

	tests := []struct {
		name  string
		edit  func(*NewClass)
		field string
	}{
		{"end before start", func(n *NewClass) { n.EndDate = "2024-01-05" }, "end_date"},
		{"same day", func(n *NewClass) { n.EndDate = n.StartDate }, "end_date"},
		{"over a year", func(n *NewClass) { n.EndDate = "2025-02-01" }, "end_date"},
		{"past start", func(n *NewClass) { n.StartDate = "2023-12-01" }, "start_date"},
		{"capacity", func(n *NewClass) { n.Capacity = 101 }, "capacity"},
		{"negative capacity", func(n *NewClass) { n.Capacity = -1 }, "capacity"},
		{"name", func(n *NewClass) { n.Name = " a " }, "name"},
	}
	for _, tt := range tests {
		form := base
		tt.edit(&form)
		_, err := form.Validate(today)
		var v *domain.ValidationError
		if !errors.As(err, &v) || v.Field != tt.field {
			t.Errorf("%s: expected %s error, got %v", tt.name, tt.field, err)
		}
	}
}

type fakeStore struct {
	listings []Listing
	created  []Class
	keywords []string
	err      error
}

func (f *fakeStore) Search(_ context.Context, _ Filter, limit, offset int) ([]Listing, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	end := offset + limit
	if end > len(f.listings) {
		end = len(f.listings)
	}
	if offset > end {
		offset = end
	}
	return append([]Listing(nil), f.listings[offset:end]...), int64(len(f.listings)), nil
}

func (f *fakeStore) Get(_ context.Context, id int64) (Listing, error) {
	for _, l := range f.listings {
		if l.ID == id {
			return l, nil
		}
	}
	return Listing{}, domain.ErrNotFound
}

func (f *fakeStore) ByInterest(context.Context, int64) ([]Listing, error) { return f.listings, f.err }

func (f *fakeStore) Create(_ context.Context, c *Class) error {
	c.ID = int64(len(f.created) + 1)
	f.created = append(f.created, *c)
	return f.err
}

func (f *fakeStore) InterestCounts(_ context.Context, keywords []string, _ int) ([]InterestCount, error) {
	f.keywords = keywords
	return nil, f.err
}

func (f *fakeStore) Interest(context.Context, int64) (InterestCount, error) {
	return InterestCount{ID: 1, Name: "요가"}, f.err
}

func (f *fakeStore) Stats(context.Context) (Stats, error) { return Stats{Classes: 3}, f.err }

func newTestService(st Store) *Service {
	return NewService(st, func() time.Time { return date("2024-01-15").Add(3 * time.Hour) }, time.UTC, time.Second)
}

func TestSearchPagesAndDerives(t *testing.T) {
	st := &fakeStore{}
	for i := 1; i <= 14; i++ {
		st.listings = append(st.listings, Listing{
			Class:     Class{ID: int64(i), Capacity: 2, StartDate: date("2024-01-20"), EndDate: date("2024-02-20")},
			Occupancy: i % 3,
		})
	}
	svc := newTestService(st)

	page, err := svc.Search(context.Background(), Filter{}, pagination.New(2, 0, PageSize))
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.Meta.Total != 14 || page.Meta.TotalPages != 2 || page.Meta.HasNext {
		t.Fatalf("page = %+v", page.Meta)
	}
	for _, l := range page.Items {
		if l.Phase != PhaseUpcoming {
			t.Fatalf("phase = %s", l.Phase)
		}
		if l.Full != (l.Occupancy >= 2) {
			t.Fatalf("full flag wrong for %+v", l)
		}
	}

	if _, err := svc.Search(context.Background(), Filter{Keyword: "x"}, pagination.Params{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSearchWrapsStorageErrors(t *testing.T) {
	svc := newTestService(&fakeStore{err: errors.New("pq: connection reset")})
	if _, err := svc.Search(context.Background(), Filter{}, pagination.Params{}); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("got %v", err)
	}
	if _, err := svc.Get(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing class: %v", err)
	}
}

func TestCreateEnforcesRoles(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st)
	form := NewClass{Name: "파이썬 스터디", StartDate: "2024-02-01", EndDate: "2024-03-01", InstructorID: "someone"}

	student := domain.Identity{MemberID: "kim01", Account: domain.AccountStudent, Active: true}
	if _, err := svc.Create(context.Background(), student, form); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("student: %v", err)
	}

	lead := domain.Identity{MemberID: "park01", Account: domain.AccountInstructor, Active: true}
	l, err := svc.Create(context.Background(), lead, form)
	if err != nil {
		t.Fatal(err)
	}
	if l.InstructorID != "park01" {
		t.Fatalf("instructor must own the class, got %q", l.InstructorID)
	}

	admin := domain.Identity{MemberID: "boss1", Account: domain.AccountAdmin, Active: true}
	l, err = svc.Create(context.Background(), admin, form)
	if err != nil || l.InstructorID != "someone" {
		t.Fatalf("admin assignment: %q %v", l.InstructorID, err)
	}
}

func TestInterestsCategoryKeywords(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st)
	if _, err := svc.Interests(context.Background(), "sports", 5); err != nil {
		t.Fatal(err)
	}
	if len(st.keywords) == 0 || st.keywords[0] != "테니스" {
		t.Fatalf("keywords = %v", st.keywords)
	}
	if _, err := svc.Interests(context.Background(), "", 5); err != nil || st.keywords != nil {
		t.Fatalf("no category should not filter: %v %v", st.keywords, err)
	}
}
