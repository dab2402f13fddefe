package domain

import "fmt"

// AccountType is the closed set of member categories.
type AccountType string

const (
	AccountStudent    AccountType = "student"
	AccountInstructor AccountType = "instructor"
	AccountAdmin      AccountType = "admin"
)

// Capability is an action gated by account type.
type Capability int

const (
	CapEnroll Capability = iota
	CapPost
	CapPinPost
	CapManageClasses
	CapRecordAttendance
	CapManageAnyClass
)

var capabilities = map[AccountType][]Capability{
	AccountStudent:    {CapEnroll, CapPost},
	AccountInstructor: {CapEnroll, CapPost, CapPinPost, CapManageClasses, CapRecordAttendance},
	AccountAdmin:      {CapEnroll, CapPost, CapPinPost, CapManageClasses, CapRecordAttendance, CapManageAnyClass},
}

// ParseAccountType validates a stored or submitted category.
func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(s); t {
	case AccountStudent, AccountInstructor, AccountAdmin:
		return t, nil
	case "":
		return AccountStudent, nil
	}
	return "", fmt.Errorf("%w: unknown account type %q", ErrInvalidInput, s)
}

// Can reports whether the account type grants c.
func (a AccountType) Can(c Capability) bool {
	for _, have := range capabilities[a] {
		if have == c {
			return true
		}
	}
	return false
}

// Label is the display name used in listings.
func (a AccountType) Label() string {
	switch a {
	case AccountInstructor:
		return "강사"
	case AccountAdmin:
		return "관리자"
	default:
		return "수강생"
	}
}

// Identity is the authenticated caller, passed explicitly into every workflow.
// The zero value is an anonymous caller.
type Identity struct {
	MemberID string
	Account  AccountType
	Active   bool
}

// Authenticated reports whether a member is attached.
func (i Identity) Authenticated() bool { return i.MemberID != "" }

// Require checks that the caller is signed in, active and holds c.
func (i Identity) Require(c Capability) error {
	if !i.Authenticated() {
		return ErrUnauthenticated
	}
	if !i.Active || !i.Account.Can(c) {
		return ErrUnauthorized
	}
	return nil
}

// Owns reports whether the caller may act on a resource owned by memberID.
func (i Identity) Owns(memberID string) bool {
	return i.Authenticated() && (i.MemberID == memberID || i.Account.Can(CapManageAnyClass))
}
