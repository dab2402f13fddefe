package auth

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"meeting/internal/domain"
	"meeting/internal/session"
)

// CookieName holds the session token for browser clients.
const CookieName = "meeting_session"

const (
	identityKey = "identity"
	claimsKey   = "claims"
)

// SessionLookup resolves a live session to its member id.
type SessionLookup interface {
	Lookup(ctx context.Context, sessionID string) (string, error)
}

// IdentityLoader turns a member id into the caller identity.
type IdentityLoader func(ctx context.Context, memberID string) (domain.Identity, error)

// Identify attaches the caller identity to the request when a valid token and
// live session are present. Anonymous requests pass through; each workflow
// decides whether it needs a member. A session or member store that cannot
// answer aborts the request instead of demoting it to anonymous.
func Identify(sessions SessionLookup, load IdentityLoader, signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := TokenFrom(c)
		if tokenStr == "" {
			c.Next()
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.Next()
			return
		}
		memberID, err := sessions.Lookup(c.Request.Context(), claims.SessionID())
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			log.Printf("[auth] session lookup: %v", err)
			abort(c, err)
			return
		}
		if err != nil || memberID != claims.Subject {
			c.Next()
			return
		}
		id, err := load(c.Request.Context(), memberID)
		if errors.Is(err, domain.ErrNotFound) {
			c.Next()
			return
		}
		if err != nil {
			log.Printf("[auth] load member %s: %v", memberID, err)
			abort(c, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Set(identityKey, id)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	err = domain.AsStorage(err)
	c.AbortWithStatusJSON(domain.HTTPStatus(err), gin.H{"error": domain.Message(err), "code": domain.Kind(err)})
}

// TokenFrom reads the bearer header, falling back to the session cookie.
func TokenFrom(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	if v, err := c.Cookie(CookieName); err == nil {
		return v
	}
	return ""
}

// IdentityFrom returns the caller identity, or the anonymous zero value.
func IdentityFrom(c *gin.Context) domain.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}
	}
	id, _ := v.(domain.Identity)
	return id
}

// ClaimsFrom returns the parsed token claims of an identified request.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}
