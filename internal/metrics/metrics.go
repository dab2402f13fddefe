package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"meeting/internal/domain"
)

// Metrics groups the collectors the services report into. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	enrollments *prometheus.CounterVec
	attendance  *prometheus.CounterVec
	requests    *prometheus.HistogramVec
}

// New registers collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meeting",
			Name:      "enrollment_attempts_total",
			Help:      "Enrollment attempts by outcome.",
		}, []string{"outcome"}),
		attendance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meeting",
			Name:      "attendance_submissions_total",
			Help:      "Attendance submissions by outcome.",
		}, []string{"outcome"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meeting",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.enrollments, m.attendance, m.requests)
	return m
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.Kind(err)
}

// Enrollment counts one enrollment attempt.
func (m *Metrics) Enrollment(err error) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome(err)).Inc()
}

// Attendance counts one attendance submission.
func (m *Metrics) Attendance(err error) {
	if m == nil {
		return
	}
	m.attendance.WithLabelValues(outcome(err)).Inc()
}

// GinMiddleware observes request latency labelled by the matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
