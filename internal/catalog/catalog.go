package catalog

import (
	"strings"
	"time"

	"meeting/internal/domain"
)

// Class is a scheduled, capacity-limited meeting.
type Class struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Capacity       int       `json:"capacity"`
	Active         bool      `json:"active"`
	InterestID     *int64    `json:"interest_id,omitempty"`
	InterestName   string    `json:"interest_name,omitempty"`
	InstructorID   string    `json:"instructor_id,omitempty"`
	InstructorName string    `json:"instructor_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Phase is where a class sits on the calendar.
type Phase string

const (
	PhaseUpcoming   Phase = "upcoming"
	PhaseInProgress Phase = "in_progress"
	PhaseEnded      Phase = "ended"
)

// PhaseOn derives the phase for the given calendar date.
func (c Class) PhaseOn(today time.Time) Phase {
	switch {
	case today.Before(c.StartDate):
		return PhaseUpcoming
	case today.After(c.EndDate):
		return PhaseEnded
	default:
		return PhaseInProgress
	}
}

// Listing is a class with its occupancy count.
type Listing struct {
	Class
	Occupancy int   `json:"occupancy"`
	Full      bool  `json:"full"`
	Phase     Phase `json:"phase"`
}

func (l *Listing) derive(today time.Time) {
	l.Full = l.Occupancy >= l.Capacity
	l.Phase = l.PhaseOn(today)
}

// Sort orders search results.
type Sort string

const (
	SortRecent  Sort = "recent"
	SortName    Sort = "name"
	SortPopular Sort = "popular"
)

// categoryKeywords groups interest names into browse categories.
var categoryKeywords = map[string][]string{
	"sports":    {"테니스", "배드민턴", "축구", "농구", "야구", "배구", "수영", "요가", "필라테스", "헬스", "크로스핏", "러닝", "마라톤", "등산", "트레킹", "클라이밍", "골프", "볼링"},
	"study":     {"영어", "중국어", "일본어", "Java", "Python", "토익", "토플", "독서", "프로그래밍", "투자", "주식", "경제", "스터디", "공부"},
	"hobby":     {"요리", "베이킹", "커피", "와인", "여행", "게임", "카페", "맛집", "쇼핑", "패션"},
	"culture":   {"영화", "연극", "뮤지컬", "콘서트", "음악", "미술", "사진", "전시회", "갤러리"},
	"lifestyle": {"반려동물", "원예", "인테리어", "명상", "힐링", "아로마", "자원봉사"},
}

// Categories lists the browse category tags.
func Categories() []string {
	return []string{"sports", "study", "hobby", "culture", "lifestyle"}
}

// CategoryKeywords returns the interest-name keywords of a category.
func CategoryKeywords(category string) ([]string, bool) {
	kw, ok := categoryKeywords[category]
	return kw, ok
}

// Filter narrows a catalog search.
type Filter struct {
	Keyword    string
	Category   string
	InterestID int64
	Sort       Sort
}

// Normalize trims and validates the filter.
func (f Filter) Normalize() (Filter, error) {
	f.Keyword = strings.TrimSpace(f.Keyword)
	if n := len([]rune(f.Keyword)); n > 0 && n < 2 {
		return f, domain.Invalid("keyword", "검색어는 2자 이상 입력해주세요.")
	} else if n > 100 {
		return f, domain.Invalid("keyword", "검색어는 100자 이하로 입력해주세요.")
	}
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	if f.Category == "all" {
		f.Category = ""
	}
	if f.Category != "" {
		if _, ok := categoryKeywords[f.Category]; !ok {
			return f, domain.Invalid("category", "알 수 없는 카테고리입니다.")
		}
	}
	if f.InterestID < 0 {
		return f, domain.Invalid("interest", "관심사가 올바르지 않습니다.")
	}
	switch f.Sort {
	case SortRecent, SortName, SortPopular:
	case "":
		f.Sort = SortRecent
	default:
		return f, domain.Invalid("sort", "정렬 기준이 올바르지 않습니다.")
	}
	return f, nil
}

// NewClass is the class creation form.
type NewClass struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	StartDate    string `json:"start_date" binding:"required"`
	EndDate      string `json:"end_date" binding:"required"`
	Capacity     int    `json:"capacity"`
	InterestID   *int64 `json:"interest_id"`
	InstructorID string `json:"instructor_id"`
}

const (
	defaultCapacity = 20
	maxCapacity     = 100
	maxDurationDays = 365
)

// Validate checks the form against today and returns the class to store.
func (n NewClass) Validate(today time.Time) (Class, error) {
	name := strings.TrimSpace(n.Name)
	if l := len([]rune(name)); l < 2 || l > 100 {
		return Class{}, domain.Invalid("name", "클래스명은 2-100자여야 합니다.")
	}
	start, err := domain.ParseDate("start_date", n.StartDate)
	if err != nil {
		return Class{}, err
	}
	end, err := domain.ParseDate("end_date", n.EndDate)
	if err != nil {
		return Class{}, err
	}
	if start.Before(today) {
		return Class{}, domain.Invalid("start_date", "시작일은 오늘 이후여야 합니다.")
	}
	if !end.After(start) {
		return Class{}, domain.Invalid("end_date", "종료일은 시작일보다 이후여야 합니다.")
	}
	if end.Sub(start) > maxDurationDays*24*time.Hour {
		return Class{}, domain.Invalid("end_date", "클래스 기간은 1년을 초과할 수 없습니다.")
	}
	capacity := n.Capacity
	if capacity == 0 {
		capacity = defaultCapacity
	}
	if capacity < 1 || capacity > maxCapacity {
		return Class{}, domain.Invalid("capacity", "정원은 1-100명이어야 합니다.")
	}
	return Class{
		Name:         name,
		Description:  strings.TrimSpace(n.Description),
		StartDate:    start,
		EndDate:      end,
		Capacity:     capacity,
		Active:       true,
		InterestID:   n.InterestID,
		InstructorID: strings.TrimSpace(n.InstructorID),
	}, nil
}

// InterestCount is an interest with the number of classes under it.
type InterestCount struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ClassCount  int    `json:"class_count"`
}

// Stats are the site-wide totals.
type Stats struct {
	Classes      int64 `json:"classes"`
	Members      int64 `json:"members"`
	Interests    int64 `json:"interests"`
	Participants int64 `json:"participants"`
}
