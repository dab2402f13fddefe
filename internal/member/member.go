package member

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"meeting/internal/domain"
)

// Member is a registered account.
type Member struct {
	ID           string             `json:"id"`
	PasswordHash string             `json:"-"`
	AccountType  domain.AccountType `json:"account_type"`
	Name         string             `json:"name"`
	Phone        string             `json:"phone"`
	Email        string             `json:"email"`
	Birth        time.Time          `json:"birth"`
	Active       bool               `json:"active"`
	JoinedAt     time.Time          `json:"joined_at"`
}

// Identity converts the member into the caller identity handed to workflows.
func (m Member) Identity() domain.Identity {
	return domain.Identity{MemberID: m.ID, Account: m.AccountType, Active: m.Active}
}

// Registration is the sign-up form.
type Registration struct {
	AccountID       string `json:"account_id" binding:"required,accountid"`
	Password        string `json:"password" binding:"required,min=8,max=50"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
	AccountType     string `json:"account_type"`
	Name            string `json:"name" binding:"required"`
	Phone           string `json:"phone" binding:"required,phone"`
	Email           string `json:"email" binding:"required,email"`
	Birth           string `json:"birth" binding:"required"`
}

var (
	accountIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{4,20}$`)
	namePattern      = regexp.MustCompile(`^[가-힣a-zA-Z\s]+$`)
	phonePattern     = regexp.MustCompile(`^01[0-9]-\d{4}-\d{4}$`)
	reservedIDs      = map[string]bool{"admin": true, "root": true, "test": true, "guest": true, "null": true, "undefined": true}
)

// ValidAccountID checks length, charset and reserved words.
func ValidAccountID(id string) bool {
	return accountIDPattern.MatchString(id) && !reservedIDs[strings.ToLower(id)]
}

// ValidPhone checks the 01X-XXXX-XXXX format.
func ValidPhone(phone string) bool { return phonePattern.MatchString(phone) }

// normalize trims the form and lower-cases the email.
func (r *Registration) normalize() {
	r.AccountID = strings.TrimSpace(r.AccountID)
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Birth = strings.TrimSpace(r.Birth)
}

// Validate checks the form against today's date and returns the member to store.
func (r Registration) Validate(today time.Time) (Member, error) {
	r.normalize()

	if !accountIDPattern.MatchString(r.AccountID) {
		return Member{}, domain.Invalid("account_id", "계정ID는 4-20자의 영문과 숫자만 사용할 수 있습니다.")
	}
	if reservedIDs[strings.ToLower(r.AccountID)] {
		return Member{}, domain.Invalid("account_id", "사용할 수 없는 계정ID입니다.")
	}
	if err := validatePassword(r.Password); err != nil {
		return Member{}, err
	}
	if r.Password != r.PasswordConfirm {
		return Member{}, domain.Invalid("password_confirm", "비밀번호가 일치하지 않습니다.")
	}
	account, err := domain.ParseAccountType(r.AccountType)
	if err != nil {
		return Member{}, domain.Invalid("account_type", "계정타입이 올바르지 않습니다.")
	}
	// Admins are provisioned by an operator, never through sign-up.
	if account == domain.AccountAdmin {
		return Member{}, domain.Invalid("account_type", "관리자 계정은 가입으로 만들 수 없습니다.")
	}
	if n := len([]rune(r.Name)); n < 2 || n > 45 || !namePattern.MatchString(r.Name) {
		return Member{}, domain.Invalid("name", "이름은 2-45자의 한글, 영문, 공백만 사용할 수 있습니다.")
	}
	if !ValidPhone(r.Phone) {
		return Member{}, domain.Invalid("phone", "전화번호 형식이 올바르지 않습니다. (예: 010-1234-5678)")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil || !strings.Contains(r.Email, "@") {
		return Member{}, domain.Invalid("email", "이메일 형식이 올바르지 않습니다.")
	}
	birth, err := domain.ParseDate("birth", r.Birth)
	if err != nil {
		return Member{}, err
	}
	if birth.After(today) {
		return Member{}, domain.Invalid("birth", "생년월일은 오늘 날짜보다 이전이어야 합니다.")
	}
	age := int(today.Sub(birth).Hours()/24) / 365
	if age < 14 {
		return Member{}, domain.Invalid("birth", "만 14세 이상만 가입할 수 있습니다.")
	}
	if age > 100 {
		return Member{}, domain.Invalid("birth", "올바른 생년월일을 입력해주세요.")
	}

	return Member{
		ID:          r.AccountID,
		AccountType: account,
		Name:        r.Name,
		Phone:       r.Phone,
		Email:       r.Email,
		Birth:       birth,
		Active:      true,
	}, nil
}

func validatePassword(pw string) error {
	if n := len(pw); n < 8 || n > 50 {
		return domain.Invalid("password", "비밀번호는 8-50자여야 합니다.")
	}
	digits, letters := true, true
	for _, r := range pw {
		if !unicode.IsDigit(r) {
			digits = false
		}
		if !unicode.IsLetter(r) {
			letters = false
		}
	}
	if digits {
		return domain.Invalid("password", "비밀번호는 숫자만으로 구성될 수 없습니다.")
	}
	if letters {
		return domain.Invalid("password", "비밀번호는 문자만으로 구성될 수 없습니다.")
	}
	return nil
}

// Interest is a topic a member follows.
type Interest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
