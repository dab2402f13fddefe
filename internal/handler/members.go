package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meeting/internal/auth"
	"meeting/internal/domain"
	"meeting/internal/member"
)

const (
	profilePosts   = 10
	profileHistory = 20
)

func (h *Handler) register(c *gin.Context) {
	var reg member.Registration
	if err := bindJSON(c, &reg); err != nil {
		writeError(c, err)
		return
	}
	m, err := h.Members.Register(c.Request.Context(), reg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": m})
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		AccountID string `json:"account_id" binding:"required"`
		Password  string `json:"password" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	ctx := c.Request.Context()
	m, err := h.Members.Authenticate(ctx, req.AccountID, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	sess, err := h.Sessions.Create(ctx, m.ID)
	if err != nil {
		writeError(c, domain.AsStorage(err))
		return
	}
	ttl := h.Sessions.TTL()
	token, err := auth.Issue(m.ID, string(m.AccountType), sess.ID, h.Tokens.Issuer, h.Tokens.SigningKey, ttl)
	if err != nil {
		_ = h.Sessions.Destroy(ctx, sess.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed", "code": "internal"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token.Value, int(ttl.Seconds()), "/", "", h.Tokens.CookieSecure, true)
	c.JSON(http.StatusCreated, gin.H{
		"member":     m,
		"token":      token.Value,
		"expires_at": token.ExpiresAt.Unix(),
	})
}

func (h *Handler) logout(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		writeError(c, domain.ErrUnauthenticated)
		return
	}
	if err := h.Sessions.Destroy(c.Request.Context(), claims.SessionID()); err != nil {
		writeError(c, domain.AsStorage(err))
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.Tokens.CookieSecure, true)
	c.Status(http.StatusNoContent)
}

func (h *Handler) profile(c *gin.Context) {
	id := auth.IdentityFrom(c)
	if !id.Authenticated() {
		writeError(c, domain.ErrUnauthenticated)
		return
	}
	ctx := c.Request.Context()
	m, err := h.Members.Get(ctx, id.MemberID)
	if err != nil {
		writeError(c, err)
		return
	}
	enrollments, err := h.Enrollments.ListForMember(ctx, id.MemberID)
	if err != nil {
		writeError(c, err)
		return
	}
	posts, err := h.Board.ByAuthor(ctx, id.MemberID, profilePosts)
	if err != nil {
		writeError(c, err)
		return
	}
	interests, err := h.Members.Interests(ctx, id.MemberID)
	if err != nil {
		writeError(c, err)
		return
	}
	history, err := h.Attendance.History(ctx, id.MemberID, profileHistory)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"member":       m,
		"enrollments":  enrollments,
		"posts":        posts,
		"interests":    interests,
		"attendance":   history,
		"account_type": id.Account.Label(),
	})
}

func (h *Handler) followInterest(c *gin.Context) {
	var req struct {
		InterestID int64 `json:"interest_id" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	if err := h.Members.FollowInterest(c.Request.Context(), auth.IdentityFrom(c), req.InterestID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
