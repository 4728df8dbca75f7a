package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// dueTolerance — окно, в котором задача считается наступившей после пробуждения.
const dueTolerance = time.Second

// Clock абстрагирует время для планировщика.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock реализует Clock поверх time.
type RealClock struct{}

// Now возвращает текущее время.
func (RealClock) Now() time.Time { return time.Now() }

// Sleep ждёт d или отмены контекста.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Task — периодическая задача с собственным расписанием.
type Task struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context) error
}

// Loop выполняет несколько задач в одном цикле ожидания: спит до ближайшего
// запуска и на каждом пробуждении запускает все наступившие задачи.
type Loop struct {
	tasks []Task
	clock Clock
	log   zerolog.Logger
}

// NewLoop создаёт планировщик.
func NewLoop(clock Clock, logger zerolog.Logger, tasks ...Task) *Loop {
	if clock == nil {
		clock = RealClock{}
	}
	return &Loop{
		tasks: tasks,
		clock: clock,
		log:   logger.With().Str("component", "schedule").Logger(),
	}
}

// Run крутит цикл планировщика до отмены контекста.
func (l *Loop) Run(ctx context.Context) error {
	if len(l.tasks) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	now := l.clock.Now()
	nexts := make([]time.Time, len(l.tasks))
	for i, task := range l.tasks {
		nexts[i] = task.Schedule.Next(now)
		l.log.Info().Str("task", task.Name).Time("next_run", nexts[i]).Msg("задача запланирована")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now = l.clock.Now()
		for i, task := range l.tasks {
			if nexts[i].IsZero() || nexts[i].After(now.Add(dueTolerance)) {
				continue
			}
			started := l.clock.Now()
			if err := task.Run(ctx); err != nil {
				l.log.Error().Err(err).Str("task", task.Name).Msg("задача завершилась с ошибкой")
			} else {
				l.log.Info().Str("task", task.Name).Dur("took", l.clock.Now().Sub(started)).Msg("задача выполнена")
			}
			nexts[i] = task.Schedule.Next(l.clock.Now())
		}

		now = l.clock.Now()
		earliest := time.Time{}
		for _, next := range nexts {
			if next.IsZero() {
				continue
			}
			if earliest.IsZero() || next.Before(earliest) {
				earliest = next
			}
		}
		if earliest.IsZero() {
			<-ctx.Done()
			return ctx.Err()
		}

		if wait := earliest.Sub(now); wait > 0 {
			if err := l.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
}
