package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"meeting/internal/attendance"
	"meeting/internal/board"
	"meeting/internal/domain"
)

var interestNames = []string{
	"테니스", "배드민턴", "축구", "농구", "야구", "배구", "수영", "요가",
	"필라테스", "헬스", "크로스핏", "러닝", "마라톤", "등산", "트레킹",
	"영어회화", "중국어", "일본어", "Java", "Python", "JavaScript",
	"토익", "토플", "독서", "투자", "주식", "경제",
	"요리", "베이킹", "커피", "와인", "여행", "게임",
	"카페투어", "맛집탐방", "쇼핑", "패션",
	"영화감상", "연극관람", "뮤지컬", "콘서트", "음악",
	"미술", "사진촬영", "전시회",
	"반려동물", "원예", "인테리어", "명상", "힐링",
}

var (
	memberNames = []string{
		"김민수", "이영희", "박철수", "최지현", "정다영", "강민재", "윤서연",
		"임태현", "한예진", "조성민", "신미경", "오준혁", "배수지", "노현우",
		"송가영", "홍정우", "권나연", "서동혁", "이수빈", "장민호", "유지훈",
		"김하은", "이준서", "박시우", "최서윤", "정예준", "강하율", "윤도윤",
		"임서현", "한지민",
	}
	surnames   = []string{"김", "이", "박", "최", "정", "강", "윤", "임", "한", "조", "신", "오", "배", "노", "송", "홍", "권", "서", "유", "문"}
	givenNames = []string{"민수", "영희", "철수", "지현", "다영", "준호", "서연", "태현", "예진", "성민"}
	mailHosts  = []string{"gmail.com", "naver.com", "daum.net", "kakao.com", "hanmail.net"}

	classTemplates = []string{
		"초보자를 위한 %s", "주말 %s 모임", "%s를 함께해요", "재미있는 %s",
		"아침 %s 클럽", "저녁 %s 동호회", "%s 정기모임", "%s 스터디",
		"즐거운 %s 시간", "프리미엄 %s", "베이직 %s", "어드밴스드 %s",
	}
	neighborhoods = []string{"강남", "홍대", "신촌", "이태원", "강북", "서초", "잠실", "건대", "명동"}

	postTitles = []string{
		"안녕하세요! 처음 참여합니다", "오늘 모임 후기입니다", "다음 모임 일정 공지",
		"모임 장소 변경 안내", "신입 회원 환영합니다!", "질문있습니다!",
		"감사 인사드립니다", "모임 규칙 안내", "추천하고 싶은 팁",
		"모임 참여 소감", "다음 주 계획", "준비물 안내",
	}
	postContents = []string{
		"안녕하세요! 이번에 처음 참여하게 되었습니다. 잘 부탁드려요. 앞으로 함께 좋은 시간 보내면 좋겠습니다.",
		"오늘 모임 정말 즐거웠어요! 다들 친절하게 대해주셔서 감사합니다. 다음 모임도 기대됩니다.",
		"다음 주 모임은 토요일 오후 2시에 진행됩니다. 장소는 기존과 동일하니 참고해주세요.",
		"갑작스럽게 장소가 변경되었습니다. 새로운 장소는 단체 채팅방에 공유드렸으니 확인해주세요.",
		"새로 가입하신 분들 환영합니다! 궁금한 점이 있으시면 언제든 문의해주세요.",
		"초보자인데 질문이 있습니다. 어떻게 시작하면 좋을까요? 조언 부탁드립니다.",
		"모임 참여 시 지켜야 할 기본 규칙들을 안내드립니다. 모두 함께 지켜주세요.",
		"오늘 배운 유용한 팁을 공유합니다. 다들 한번씩 시도해보시면 좋을 것 같아요.",
	}
)

type seedMember struct {
	ID      string
	Name    string
	Phone   string
	Email   string
	Birth   time.Time
	Account domain.AccountType
}

type seedClass struct {
	Name       string
	Interest   int // index into interestNames
	Instructor string
	Start      time.Time
	End        time.Time
	Capacity   int
}

type seedEnrollment struct {
	ID        string
	MemberID  string
	Class     int // index into plan.Classes
	CreatedAt time.Time
}

type seedPost struct {
	Class     int
	AuthorID  string
	Title     string
	Content   string
	Category  board.Category
	Views     int
	CreatedAt time.Time
}

type seedAttendance struct {
	ID           string
	EnrollmentID string
	Date         time.Time
	Status       attendance.Status
}

type seedFollow struct {
	MemberID string
	Interest int
}

// plan is the full sample data set, generated before anything is written.
type plan struct {
	Members     []seedMember
	Classes     []seedClass
	Enrollments []seedEnrollment
	Follows     []seedFollow
	Posts       []seedPost
	Attendance  []seedAttendance
}

type generator struct {
	rnd   *rand.Rand
	today time.Time
}

func (g *generator) pick(items []string) string { return items[g.rnd.Intn(len(items))] }

// sample returns k distinct indexes below n.
func (g *generator) sample(n, k int) []int {
	if k > n {
		k = n
	}
	return g.rnd.Perm(n)[:k]
}

func (g *generator) accountType() domain.AccountType {
	switch p := g.rnd.Float64(); {
	case p < 0.80:
		return domain.AccountStudent
	case p < 0.95:
		return domain.AccountInstructor
	default:
		return domain.AccountAdmin
	}
}

// generate builds a consistent data set: enrollments respect capacity and
// start dates, attendance falls on Saturdays of classes already running.
func (g *generator) generate(members, classes int) plan {
	var p plan

	phones := map[string]bool{}
	for i := 0; i < members; i++ {
		name := fmt.Sprintf("%s%s", g.pick(surnames), g.pick(givenNames))
		if i < len(memberNames) {
			name = memberNames[i]
		}
		id := fmt.Sprintf("user%03d", i+1)
		phone := fmt.Sprintf("010-%04d-%04d", 1000+g.rnd.Intn(9000), 1000+g.rnd.Intn(9000))
		for phones[phone] {
			phone = fmt.Sprintf("010-%04d-%04d", 1000+g.rnd.Intn(9000), 1000+g.rnd.Intn(9000))
		}
		phones[phone] = true
		acct := g.accountType()
		if i == 0 {
			acct = domain.AccountInstructor
		}
		p.Members = append(p.Members, seedMember{
			ID:      id,
			Name:    name,
			Phone:   phone,
			Email:   id + "@" + g.pick(mailHosts),
			Birth:   time.Date(1980+g.rnd.Intn(26), time.Month(1+g.rnd.Intn(12)), 1+g.rnd.Intn(28), 0, 0, 0, 0, time.UTC),
			Account: acct,
		})
	}

	instructors := lo.FilterMap(p.Members, func(m seedMember, _ int) (string, bool) {
		return m.ID, m.Account != domain.AccountStudent
	})

	names := map[string]int{}
	for i := 0; i < classes; i++ {
		interest := g.rnd.Intn(len(interestNames))
		name := fmt.Sprintf(g.pick(classTemplates), interestNames[interest])
		if g.rnd.Float64() < 0.3 {
			name = g.pick(neighborhoods) + " " + name
		}
		if n := names[name]; n > 0 {
			names[name] = n + 1
			name = fmt.Sprintf("%s %d", name, n)
		} else {
			names[name] = 1
		}
		// A third of the classes are already running so the sample has attendance.
		start := g.today.AddDate(0, 0, 1+g.rnd.Intn(60))
		if g.rnd.Intn(3) == 0 {
			start = g.today.AddDate(0, 0, -(7 + g.rnd.Intn(60)))
		}
		c := seedClass{
			Name:     name,
			Interest: interest,
			Start:    start,
			End:      start.AddDate(0, 0, 30+g.rnd.Intn(151)),
			Capacity: 5 + g.rnd.Intn(26),
		}
		if len(instructors) > 0 {
			c.Instructor = g.pick(instructors)
		}
		p.Classes = append(p.Classes, c)
	}
	if len(p.Classes) == 0 {
		return p
	}

	seats := lo.Map(p.Classes, func(c seedClass, _ int) int { return c.Capacity })
	roster := map[int][]string{}
	for _, m := range p.Members {
		for _, ci := range g.sample(len(p.Classes), 1+g.rnd.Intn(5)) {
			if seats[ci] == 0 {
				continue
			}
			seats[ci]--
			c := p.Classes[ci]
			created := c.Start.AddDate(0, 0, -(1 + g.rnd.Intn(30))).
				Add(time.Duration(9+g.rnd.Intn(13))*time.Hour + time.Duration(g.rnd.Intn(60))*time.Minute)
			p.Enrollments = append(p.Enrollments, seedEnrollment{
				ID:        uuid.NewString(),
				MemberID:  m.ID,
				Class:     ci,
				CreatedAt: created,
			})
			roster[ci] = append(roster[ci], m.ID)
		}
		for _, ii := range g.sample(len(interestNames), 1+g.rnd.Intn(4)) {
			p.Follows = append(p.Follows, seedFollow{MemberID: m.ID, Interest: ii})
		}
	}

	categories := []board.Category{board.CategoryNotice, board.CategoryReview, board.CategoryGeneral}
	boards := 0
	for ci, c := range p.Classes {
		authors := roster[ci]
		if len(authors) == 0 || c.Start.After(g.today.AddDate(0, 0, 30)) || boards >= 20 {
			continue
		}
		boards++
		for n := 3 + g.rnd.Intn(6); n > 0; n-- {
			created := g.today.Add(-time.Duration(g.rnd.Intn(30*24)) * time.Hour)
			p.Posts = append(p.Posts, seedPost{
				Class:     ci,
				AuthorID:  authors[g.rnd.Intn(len(authors))],
				Title:     g.pick(postTitles),
				Content:   g.pick(postContents),
				Category:  weightedCategory(categories, g.rnd.Float64()),
				Views:     g.rnd.Intn(51),
				CreatedAt: created,
			})
		}
	}

	for _, e := range p.Enrollments {
		c := p.Classes[e.Class]
		if c.Start.After(g.today) {
			continue
		}
		last := c.End
		if g.today.Before(last) {
			last = g.today
		}
		for d := nextSaturday(c.Start); !d.After(last); d = d.AddDate(0, 0, 7) {
			if g.rnd.Float64() >= 0.8 {
				continue
			}
			status := attendance.StatusPresent
			switch r := g.rnd.Float64(); {
			case r < 0.1:
				status = attendance.StatusAbsent
			case r < 0.2:
				status = attendance.StatusLate
			}
			p.Attendance = append(p.Attendance, seedAttendance{
				ID:           uuid.NewString(),
				EnrollmentID: e.ID,
				Date:         d,
				Status:       status,
			})
		}
	}
	return p
}

// weightedCategory picks notice 15%, review 25%, general 60%.
func weightedCategory(c []board.Category, r float64) board.Category {
	switch {
	case r < 0.15:
		return c[0]
	case r < 0.40:
		return c[1]
	default:
		return c[2]
	}
}

func nextSaturday(d time.Time) time.Time {
	return d.AddDate(0, 0, (int(time.Saturday)-int(d.Weekday())+7)%7)
}
