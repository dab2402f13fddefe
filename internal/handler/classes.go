package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meeting/internal/attendance"
	"meeting/internal/auth"
	"meeting/internal/board"
	"meeting/internal/catalog"
	"meeting/internal/domain"
	"meeting/internal/pagination"
)

func (h *Handler) searchClasses(c *gin.Context) {
	interestID, err := intQuery(c, "interest", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	f := catalog.Filter{
		Keyword:    c.Query("keyword"),
		Category:   c.Query("category"),
		InterestID: int64(interestID),
		Sort:       catalog.Sort(c.Query("sort")),
	}
	page, err := h.Catalog.Search(c.Request.Context(), f, pagination.FromQuery(c, catalog.PageSize))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getClass(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	l, err := h.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class": l})
}

func (h *Handler) createClass(c *gin.Context) {
	var form catalog.NewClass
	if err := bindJSON(c, &form); err != nil {
		writeError(c, err)
		return
	}
	l, err := h.Catalog.Create(c.Request.Context(), auth.IdentityFrom(c), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"class": l})
}

func (h *Handler) enroll(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.Enrollments.Enroll(c.Request.Context(), auth.IdentityFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) cancelEnrollment(c *gin.Context) {
	e, err := h.Enrollments.Cancel(c.Request.Context(), auth.IdentityFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollment": e})
}

func (h *Handler) attendanceSheet(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	date := h.today()
	if raw := c.Query("date"); raw != "" {
		if date, err = domain.ParseDate("date", raw); err != nil {
			writeError(c, err)
			return
		}
	}
	rows, err := h.Attendance.Sheet(c.Request.Context(), auth.IdentityFrom(c), id, date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class_id": id, "date": date.Format("2006-01-02"), "rows": rows})
}

func (h *Handler) recordAttendance(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req struct {
		Date     string                       `json:"date" binding:"required"`
		Statuses map[string]attendance.Status `json:"statuses"`
		Notes    map[string]string            `json:"notes"`
	}
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	date, err := domain.ParseDate("date", req.Date)
	if err != nil {
		writeError(c, err)
		return
	}
	if req.Statuses == nil {
		req.Statuses = map[string]attendance.Status{}
	}
	res, err := h.Attendance.Record(c.Request.Context(), auth.IdentityFrom(c), attendance.Submission{
		ClassID:  id,
		Date:     date,
		Statuses: req.Statuses,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) listPosts(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.Board.List(c.Request.Context(), id, pagination.FromQuery(c, board.PageSize))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) createPost(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var form board.NewPost
	if err := bindJSON(c, &form); err != nil {
		writeError(c, err)
		return
	}
	p, err := h.Board.Create(c.Request.Context(), auth.IdentityFrom(c), id, form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": p})
}

func (h *Handler) getPost(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := h.Board.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": p})
}

func (h *Handler) interests(c *gin.Context) {
	limit, err := intQuery(c, "limit", 10)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.Catalog.Interests(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interests": res, "categories": catalog.Categories()})
}

func (h *Handler) interestClasses(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	interest, classes, err := h.Catalog.InterestClasses(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interest": interest, "classes": classes})
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.Catalog.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
