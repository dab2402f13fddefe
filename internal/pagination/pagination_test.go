package pagination

import (
	"math"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNewClamps(t *testing.T) {
	tests := []struct {
		page, limit     int
		wantPage, wantL int
		wantOffset      int
	}{
		{0, 0, 1, 12, 0},
		{3, 12, 3, 12, 24},
		{-5, 500, 1, MaxLimit, 0},
		{2, 10, 2, 10, 10},
		{math.MaxInt, 12, MaxPage, 12, (MaxPage - 1) * 12},
		{MaxPage + 1, MaxLimit, MaxPage, MaxLimit, (MaxPage - 1) * MaxLimit},
	}
	for _, tt := range tests {
		p := New(tt.page, tt.limit, 12)
		if p.Page != tt.wantPage || p.Limit != tt.wantL || p.Offset != tt.wantOffset {
			t.Errorf("New(%d,%d) = %+v", tt.page, tt.limit, p)
		}
	}
}

func TestFromQueryHugePage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/v1/classes?page=9223372036854775807&limit=100", nil)
	p := FromQuery(c, 12)
	if p.Page != MaxPage || p.Offset < 0 {
		t.Fatalf("got %+v", p)
	}
}

func TestMetaFor(t *testing.T) {
	m := MetaFor(New(2, 12, 12), 25)
	if m.TotalPages != 3 || !m.HasNext || !m.HasPrev {
		t.Fatalf("unexpected meta %+v", m)
	}
	m = MetaFor(New(1, 10, 10), 0)
	if m.TotalPages != 0 || m.HasNext || m.HasPrev {
		t.Fatalf("empty meta %+v", m)
	}
}

func TestFromQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/v1/classes?page=4&limit=abc", nil)
	p := FromQuery(c, 12)
	if p.Page != 4 || p.Limit != 12 || p.Offset != 36 {
		t.Fatalf("got %+v", p)
	}
}
