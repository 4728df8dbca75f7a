package schedule

import (
	"errors"
	"testing"
	"time"
)

func mustParse(t *testing.T, expr string) Schedule {
	t.Helper()
	s, err := ParseCron(expr)
	if err != nil {
		t.Fatalf("не ожидали ошибку разбора %q: %v", expr, err)
	}
	return s
}

func TestParseCronRejectsInvalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"61 * * * *",
		"* 24 * * *",
		"*/0 * * * *",
		"a * * * *",
		"5-1 * * * *",
	} {
		if _, err := ParseCron(expr); !errors.Is(err, ErrInvalidCron) {
			t.Fatalf("ожидали ErrInvalidCron для %q, получили %v", expr, err)
		}
	}
}

func TestNextEveryHalfHour(t *testing.T) {
	s := mustParse(t, "*/30 * * * *")
	after := time.Date(2025, 6, 2, 10, 5, 40, 0, time.UTC)
	want := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	if got := s.Next(after); !got.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, got)
	}
}

func TestNextDailyAtNine(t *testing.T) {
	s := mustParse(t, "0 9 * * *")

	before := time.Date(2025, 6, 2, 8, 59, 0, 0, time.UTC)
	want := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	if got := s.Next(before); !got.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, got)
	}

	after := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	want = time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	if got := s.Next(after); !got.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, got)
	}
}

func TestNextIsStrictlyAfter(t *testing.T) {
	s := mustParse(t, "0 9 * * *")
	exactly := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	want := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	if got := s.Next(exactly); !got.Equal(want) {
		t.Fatalf("запуск в момент срабатывания должен давать следующий день, получили %v", got)
	}
}

func TestNextWeekday(t *testing.T) {
	// 2025-06-02 — понедельник
	s := mustParse(t, "0 3 * * 1")
	after := time.Date(2025, 6, 2, 4, 0, 0, 0, time.UTC)
	want := time.Date(2025, 6, 9, 3, 0, 0, 0, time.UTC)
	if got := s.Next(after); !got.Equal(want) {
		t.Fatalf("ожидали следующий понедельник %v, получили %v", want, got)
	}
}

func TestNextSundayAsSeven(t *testing.T) {
	s := mustParse(t, "0 12 * * 7")
	after := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	want := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	if got := s.Next(after); !got.Equal(want) {
		t.Fatalf("7 в поле дня недели должна означать воскресенье, получили %v", got)
	}
}

func TestNextDayOfMonth(t *testing.T) {
	s := mustParse(t, "15 14 1 * *")
	after := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	want := time.Date(2025, 7, 1, 14, 15, 0, 0, time.UTC)
	if got := s.Next(after); !got.Equal(want) {
		t.Fatalf("ожидали первое число месяца %v, получили %v", want, got)
	}
}

func TestMatchesDayOrWeekday(t *testing.T) {
	// классическое cron-правило: при ограничении обоих полей дня хватает одного
	s := mustParse(t, "0 0 13 * 5")
	friday := time.Date(2025, 7, 11, 0, 0, 0, 0, time.UTC)
	thirteenth := time.Date(2025, 7, 13, 0, 0, 0, 0, time.UTC)
	other := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	if !s.Matches(friday) {
		t.Fatalf("пятница должна подходить")
	}
	if !s.Matches(thirteenth) {
		t.Fatalf("13-е число должно подходить")
	}
	if s.Matches(other) {
		t.Fatalf("обычный вторник не должен подходить")
	}
}
