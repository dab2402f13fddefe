package main

import (
	"math/rand"
	"testing"
	"time"

	"meeting/internal/board"
	"meeting/internal/member"
)

func TestGeneratePlanIsConsistent(t *testing.T) {
	today := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	g := &generator{rnd: rand.New(rand.NewSource(42)), today: today}
	p := g.generate(40, 60)

	if len(p.Members) != 40 || len(p.Classes) != 60 {
		t.Fatalf("members=%d classes=%d", len(p.Members), len(p.Classes))
	}

	phones := map[string]bool{}
	for _, m := range p.Members {
		if !member.ValidAccountID(m.ID) || !member.ValidPhone(m.Phone) {
			t.Fatalf("invalid member %+v", m)
		}
		if phones[m.Phone] {
			t.Fatalf("duplicate phone %s", m.Phone)
		}
		phones[m.Phone] = true
	}

	names := map[string]bool{}
	for _, c := range p.Classes {
		if names[c.Name] {
			t.Fatalf("duplicate class name %q", c.Name)
		}
		names[c.Name] = true
		if !c.End.After(c.Start) || c.Capacity < 1 {
			t.Fatalf("bad class %+v", c)
		}
	}

	taken := map[int]int{}
	pairs := map[[2]any]bool{}
	started := map[string]bool{}
	for _, e := range p.Enrollments {
		taken[e.Class]++
		key := [2]any{e.MemberID, e.Class}
		if pairs[key] {
			t.Fatalf("member %s enrolled twice in class %d", e.MemberID, e.Class)
		}
		pairs[key] = true
		c := p.Classes[e.Class]
		if !e.CreatedAt.Before(c.Start) {
			t.Fatalf("enrollment after start: %+v", e)
		}
		started[e.ID] = !c.Start.After(today)
	}
	for ci, n := range taken {
		if n > p.Classes[ci].Capacity {
			t.Fatalf("class %d over capacity: %d > %d", ci, n, p.Classes[ci].Capacity)
		}
	}

	for _, a := range p.Attendance {
		if !started[a.EnrollmentID] {
			t.Fatalf("attendance for class not started: %+v", a)
		}
		if a.Date.After(today) || a.Date.Weekday() != time.Saturday {
			t.Fatalf("bad attendance date %v", a.Date)
		}
	}

	for _, post := range p.Posts {
		form := board.NewPost{Title: post.Title, Content: post.Content, Category: post.Category}
		if _, err := form.Validate(); err != nil {
			t.Fatalf("sample post fails validation: %v", err)
		}
	}
}

func TestNextSaturday(t *testing.T) {
	fri := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := nextSaturday(fri); got.Day() != 16 {
		t.Fatalf("friday -> %v", got)
	}
	sat := fri.AddDate(0, 0, 1)
	if got := nextSaturday(sat); !got.Equal(sat) {
		t.Fatalf("saturday -> %v", got)
	}
}
