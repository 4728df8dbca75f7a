package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCron возвращается для нераспознанного cron-выражения.
var ErrInvalidCron = errors.New("некорректное cron-выражение")

// Schedule — разобранное пятипольное cron-выражение:
// минута, час, день месяца, месяц, день недели.
type Schedule struct {
	expr     string
	minutes  map[int]bool
	hours    map[int]bool
	days     map[int]bool
	months   map[int]bool
	weekdays map[int]bool
	// при ограничении обоих полей дня срабатывает любое из двух, как в cron
	dayRestricted     bool
	weekdayRestricted bool
}

type cronField struct {
	name string
	min  int
	max  int
}

var cronFields = []cronField{
	{name: "minute", min: 0, max: 59},
	{name: "hour", min: 0, max: 23},
	{name: "day", min: 1, max: 31},
	{name: "month", min: 1, max: 12},
	{name: "weekday", min: 0, max: 7},
}

// ParseCron разбирает пятипольное cron-выражение.
func ParseCron(expr string) (Schedule, error) {
	parts := strings.Fields(strings.TrimSpace(expr))
	if len(parts) != 5 {
		return Schedule{}, fmt.Errorf("%w: ожидали 5 полей, получили %d", ErrInvalidCron, len(parts))
	}

	sets := make([]map[int]bool, 5)
	restricted := make([]bool, 5)
	for i, part := range parts {
		set, all, err := parseCronField(part, cronFields[i])
		if err != nil {
			return Schedule{}, err
		}
		sets[i] = set
		restricted[i] = !all
	}

	return Schedule{
		expr:              expr,
		minutes:           sets[0],
		hours:             sets[1],
		days:              sets[2],
		months:            sets[3],
		weekdays:          sets[4],
		dayRestricted:     restricted[2],
		weekdayRestricted: restricted[4],
	}, nil
}

func parseCronField(raw string, field cronField) (map[int]bool, bool, error) {
	set := make(map[int]bool)
	all := true
	for _, atom := range strings.Split(raw, ",") {
		atom = strings.TrimSpace(atom)
		if atom == "" {
			return nil, false, fmt.Errorf("%w: пустой элемент в поле %s", ErrInvalidCron, field.name)
		}

		step := 1
		if idx := strings.Index(atom, "/"); idx >= 0 {
			parsed, err := strconv.Atoi(atom[idx+1:])
			if err != nil || parsed <= 0 {
				return nil, false, fmt.Errorf("%w: шаг %q в поле %s", ErrInvalidCron, atom, field.name)
			}
			step = parsed
			atom = atom[:idx]
		}

		lo, hi := field.min, field.max
		switch {
		case atom == "*":
			if step == 1 && raw == "*" {
				// поле без ограничений
			} else {
				all = false
			}
		case strings.Contains(atom, "-"):
			bounds := strings.SplitN(atom, "-", 2)
			a, errA := strconv.Atoi(bounds[0])
			b, errB := strconv.Atoi(bounds[1])
			if errA != nil || errB != nil {
				return nil, false, fmt.Errorf("%w: диапазон %q в поле %s", ErrInvalidCron, atom, field.name)
			}
			lo, hi = a, b
			all = false
		default:
			v, err := strconv.Atoi(atom)
			if err != nil {
				return nil, false, fmt.Errorf("%w: значение %q в поле %s", ErrInvalidCron, atom, field.name)
			}
			lo, hi = v, v
			all = false
		}

		if lo < field.min || hi > field.max || lo > hi {
			return nil, false, fmt.Errorf("%w: %q вне диапазона поля %s", ErrInvalidCron, atom, field.name)
		}
		for v := lo; v <= hi; v += step {
			// в поле дня недели 7 означает воскресенье
			if field.name == "weekday" && v == 7 {
				set[0] = true
				continue
			}
			set[v] = true
		}
	}
	return set, all, nil
}

// String возвращает исходное выражение.
func (s Schedule) String() string { return s.expr }

// Matches сообщает, попадает ли минута t в расписание.
func (s Schedule) Matches(t time.Time) bool {
	if !s.minutes[t.Minute()] || !s.hours[t.Hour()] || !s.months[int(t.Month())] {
		return false
	}
	dayOK := s.days[t.Day()]
	weekdayOK := s.weekdays[int(t.Weekday())]
	if s.dayRestricted && s.weekdayRestricted {
		return dayOK || weekdayOK
	}
	return dayOK && weekdayOK
}

// Next возвращает ближайшее время запуска строго после after.
func (s Schedule) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(1, 0, 1)
	for ; t.Before(limit); t = t.Add(time.Minute) {
		if s.Matches(t) {
			return t
		}
	}
	return time.Time{}
}
