package handler

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"meeting/internal/attendance"
	"meeting/internal/board"
	"meeting/internal/catalog"
	"meeting/internal/domain"
	"meeting/internal/enrollment"
	"meeting/internal/member"
	"meeting/internal/pagination"
	"meeting/internal/session"
)

// Members is the member service surface used over HTTP.
type Members interface {
	Register(ctx context.Context, reg member.Registration) (member.Member, error)
	Authenticate(ctx context.Context, accountID, password string) (member.Member, error)
	Get(ctx context.Context, id string) (member.Member, error)
	Interests(ctx context.Context, id string) ([]member.Interest, error)
	FollowInterest(ctx context.Context, id domain.Identity, interestID int64) error
}

// Sessions starts and ends server-side logins.
type Sessions interface {
	Create(ctx context.Context, memberID string) (session.Session, error)
	Destroy(ctx context.Context, id string) error
	TTL() time.Duration
}

// Catalog is the class catalog surface.
type Catalog interface {
	Search(ctx context.Context, f catalog.Filter, p pagination.Params) (catalog.Page, error)
	Get(ctx context.Context, id int64) (catalog.Listing, error)
	Create(ctx context.Context, id domain.Identity, form catalog.NewClass) (catalog.Listing, error)
	Interests(ctx context.Context, category string, limit int) ([]catalog.InterestCount, error)
	InterestClasses(ctx context.Context, interestID int64) (catalog.InterestCount, []catalog.Listing, error)
	Stats(ctx context.Context) (catalog.Stats, error)
}

// Enrollments is the enrollment workflow surface.
type Enrollments interface {
	Enroll(ctx context.Context, id domain.Identity, classID int64) (enrollment.Result, error)
	Cancel(ctx context.Context, id domain.Identity, enrollmentID string) (enrollment.Enrollment, error)
	ListForMember(ctx context.Context, memberID string) ([]enrollment.MemberEnrollment, error)
}

// Attendance is the attendance recorder surface.
type Attendance interface {
	Record(ctx context.Context, id domain.Identity, sub attendance.Submission) (attendance.RecordResult, error)
	Sheet(ctx context.Context, id domain.Identity, classID int64, date time.Time) ([]attendance.SheetRow, error)
	History(ctx context.Context, memberID string, limit int) ([]attendance.HistoryEntry, error)
}

// Board is the discussion board surface.
type Board interface {
	Create(ctx context.Context, id domain.Identity, classID int64, form board.NewPost) (board.Post, error)
	List(ctx context.Context, classID int64, p pagination.Params) (board.Page, error)
	Get(ctx context.Context, postID int64) (board.Post, error)
	ByAuthor(ctx context.Context, memberID string, limit int) ([]board.Post, error)
}

// TokenSettings controls how session tokens are signed and delivered.
type TokenSettings struct {
	Issuer       string
	SigningKey   string
	CookieSecure bool
}

// Handler serves the JSON API.
type Handler struct {
	Members     Members
	Sessions    Sessions
	Catalog     Catalog
	Enrollments Enrollments
	Attendance  Attendance
	Board       Board
	Tokens      TokenSettings
	Now         domain.Clock
	Location    *time.Location
}

// Routes mounts the API under /v1. loginLimit guards the login endpoint.
func (h *Handler) Routes(r gin.IRouter, loginLimit gin.HandlerFunc) {
	if loginLimit == nil {
		loginLimit = func(c *gin.Context) { c.Next() }
	}
	v1 := r.Group("/v1")

	v1.POST("/members", h.register)
	v1.POST("/sessions", loginLimit, h.login)
	v1.DELETE("/sessions", h.logout)
	v1.GET("/me", h.profile)
	v1.POST("/me/interests", h.followInterest)

	v1.GET("/classes", h.searchClasses)
	v1.POST("/classes", h.createClass)
	v1.GET("/classes/:id", h.getClass)
	v1.POST("/classes/:id/enroll", h.enroll)
	v1.DELETE("/enrollments/:id", h.cancelEnrollment)

	v1.GET("/classes/:id/attendance", h.attendanceSheet)
	v1.POST("/classes/:id/attendance", h.recordAttendance)

	v1.GET("/classes/:id/posts", h.listPosts)
	v1.POST("/classes/:id/posts", h.createPost)
	v1.GET("/posts/:id", h.getPost)

	v1.GET("/interests", h.interests)
	v1.GET("/interests/:id/classes", h.interestClasses)
	v1.GET("/stats", h.stats)
}

func (h *Handler) today() time.Time {
	now := h.Now
	if now == nil {
		now = time.Now
	}
	return domain.Today(now(), h.Location)
}

// writeError renders err with its mapped status, message and code.
func writeError(c *gin.Context, err error) {
	body := gin.H{"error": domain.Message(err), "code": domain.Kind(err)}
	var v *domain.ValidationError
	if errors.As(err, &v) {
		body["field"] = v.Field
	}
	c.AbortWithStatusJSON(domain.HTTPStatus(err), body)
}

// idParam parses a numeric path id. Anything else cannot name a row.
func idParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(key, "숫자를 입력해주세요.")
	}
	return n, nil
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags and reports fields by
// their JSON names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("accountid", func(fl validator.FieldLevel) bool {
			return member.ValidAccountID(fl.Field().String())
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return member.ValidPhone(fl.Field().String())
		})
	})
}

var tagMessages = map[string]string{
	"required":  "필수 입력 항목입니다.",
	"email":     "올바른 이메일 주소를 입력해주세요.",
	"accountid": "계정ID는 4-20자의 영문과 숫자만 사용할 수 있습니다.",
	"phone":     "전화번호는 010-1234-5678 형식으로 입력해주세요.",
	"min":       "입력값이 너무 짧습니다.",
	"max":       "입력값이 너무 깁니다.",
}

// bindJSON decodes the body and turns binding failures into ErrInvalidInput.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = domain.Message(domain.ErrInvalidInput)
		}
		return domain.Invalid(fe.Field(), msg)
	}
	return domain.Invalid("body", "요청 형식이 올바르지 않습니다.")
}
