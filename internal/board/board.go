package board

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"

	"meeting/internal/domain"
	"meeting/internal/pagination"
)

// PageSize is the default number of posts per page.
const PageSize = 10

// Category of a post.
type Category string

const (
	CategoryNotice   Category = "notice"
	CategoryReview   Category = "review"
	CategoryGeneral  Category = "general"
	CategoryQuestion Category = "question"
	CategoryEvent    Category = "event"
)

func (c Category) valid() bool {
	switch c {
	case CategoryNotice, CategoryReview, CategoryGeneral, CategoryQuestion, CategoryEvent:
		return true
	}
	return false
}

// Post is a message on a class board.
type Post struct {
	ID         int64     `json:"id"`
	ClassID    int64     `json:"class_id"`
	ClassName  string    `json:"class_name,omitempty"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Title      string    `json:"title"`
	Content    string    `json:"content,omitempty"`
	Category   Category  `json:"category"`
	Views      int       `json:"views"`
	Pinned     bool      `json:"pinned"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewPost is the post form.
type NewPost struct {
	Title    string   `json:"title" binding:"required"`
	Content  string   `json:"content" binding:"required"`
	Category Category `json:"category"`
	Pinned   bool     `json:"pinned"`
}

var (
	titleForbidden = regexp.MustCompile(`[<>{}\[\]\\]`)
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	longHangul     = regexp.MustCompile(`[가-힣]{10,}`)
)

// repeatedRun reports whether any character repeats more than limit times in a row.
func repeatedRun(s string, limit int) bool {
	var (
		prev rune = -1
		run  int
	)
	for _, r := range s {
		if r == prev {
			run++
			if run > limit {
				return true
			}
			continue
		}
		prev, run = r, 1
	}
	return false
}

// Validate trims and checks the form.
func (p NewPost) Validate() (NewPost, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Content = strings.TrimSpace(p.Content)
	if n := len([]rune(p.Title)); n < 2 || n > 200 {
		return p, domain.Invalid("title", "제목은 2-200자여야 합니다.")
	}
	if titleForbidden.MatchString(p.Title) {
		return p, domain.Invalid("title", "제목에 사용할 수 없는 특수문자가 포함되어 있습니다.")
	}
	if n := len([]rune(p.Content)); n < 10 || n > 5000 {
		return p, domain.Invalid("content", "내용은 10자 이상 5000자 이하로 입력해주세요.")
	}
	if urlPattern.MatchString(p.Content) || longHangul.MatchString(p.Content) || repeatedRun(p.Content, 10) {
		return p, domain.Invalid("content", "부적절한 내용이 포함되어 있습니다.")
	}
	if p.Category == "" {
		p.Category = CategoryGeneral
	}
	if !p.Category.valid() {
		return p, domain.Invalid("category", "카테고리가 올바르지 않습니다.")
	}
	return p, nil
}

// Store is the persistence the board needs; *Repository implements it.
type Store interface {
	ClassExists(ctx context.Context, classID int64) (bool, error)
	Create(ctx context.Context, p *Post) error
	List(ctx context.Context, classID int64, limit, offset int) ([]Post, int64, error)
	View(ctx context.Context, postID int64) (Post, error)
	ByAuthor(ctx context.Context, memberID string, limit int) ([]Post, error)
}

// Page is one page of posts.
type Page struct {
	Items []Post          `json:"items"`
	Meta  pagination.Meta `json:"meta"`
}

// Service runs the per-class discussion boards.
type Service struct {
	store   Store
	timeout time.Duration
}

// NewService creates a board service.
func NewService(store Store, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{store: store, timeout: timeout}
}

func storageErr(op string, err error) error {
	if err != nil && !domain.Known(err) {
		log.Printf("[board] %s: %v", op, err)
	}
	return domain.AsStorage(err)
}

// Create posts on a class board. Pinning needs an instructor or admin.
func (s *Service) Create(ctx context.Context, id domain.Identity, classID int64, form NewPost) (Post, error) {
	if err := id.Require(domain.CapPost); err != nil {
		return Post{}, err
	}
	form, err := form.Validate()
	if err != nil {
		return Post{}, err
	}
	if form.Pinned && !id.Account.Can(domain.CapPinPost) {
		return Post{}, domain.ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.store.ClassExists(ctx, classID)
	if err != nil {
		return Post{}, storageErr("class lookup", err)
	}
	if !ok {
		return Post{}, domain.ErrNotFound
	}
	p := Post{
		ClassID:  classID,
		AuthorID: id.MemberID,
		Title:    form.Title,
		Content:  form.Content,
		Category: form.Category,
		Pinned:   form.Pinned,
	}
	if err := s.store.Create(ctx, &p); err != nil {
		return Post{}, storageErr("create", err)
	}
	return p, nil
}

// List returns a page of a class board, pinned posts first, then newest.
func (s *Service) List(ctx context.Context, classID int64, p pagination.Params) (Page, error) {
	if p.Limit < 1 {
		p = pagination.New(p.Page, 0, PageSize)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.store.ClassExists(ctx, classID)
	if err != nil {
		return Page{}, storageErr("class lookup", err)
	}
	if !ok {
		return Page{}, domain.ErrNotFound
	}
	items, total, err := s.store.List(ctx, classID, p.Limit, p.Offset)
	if err != nil {
		return Page{}, storageErr("list", err)
	}
	return Page{Items: items, Meta: pagination.MetaFor(p, total)}, nil
}

// Get returns a post and counts the view.
func (s *Service) Get(ctx context.Context, postID int64) (Post, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p, err := s.store.View(ctx, postID)
	return p, storageErr("view", err)
}

// ByAuthor lists a member's latest posts.
func (s *Service) ByAuthor(ctx context.Context, memberID string, limit int) ([]Post, error) {
	if limit < 1 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.store.ByAuthor(ctx, memberID, limit)
	return res, storageErr("by author", err)
}
