package ailimit

import (
	"sync"
	"time"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/metrics"
)

const (
	// DefaultWindow задаёт минимальную паузу между AI-запросами пользователя.
	DefaultWindow = 5 * time.Second

	shardCount = 16
	staleAfter = time.Hour
)

type shard struct {
	mu   sync.Mutex
	last map[int64]time.Time
}

// Limiter ограничивает частоту AI-запросов фиксированным окном на
// пользователя. Пользователи с премиальным тарифом окно не ждут.
type Limiter struct {
	window time.Duration
	shards [shardCount]*shard
	now    func() time.Time
}

// New создаёт лимитер с заданным окном, при нуле берётся окно по умолчанию.
func New(window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{window: window, now: time.Now}
	for i := range l.shards {
		l.shards[i] = &shard{last: make(map[int64]time.Time)}
	}
	return l
}

// Allow проверяет, можно ли пользователю выполнить AI-запрос сейчас.
// При отказе возвращает остаток окна до следующей попытки.
func (l *Limiter) Allow(user domain.User) (bool, time.Duration) {
	if user.BypassesAIWindow() {
		return true, 0
	}

	sh := l.shards[uint64(user.ID)%shardCount]
	now := l.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if last, ok := sh.last[user.ID]; ok {
		elapsed := now.Sub(last)
		if elapsed < l.window {
			metrics.AIRequestsDenied.Inc()
			return false, l.window - elapsed
		}
	}

	sh.last[user.ID] = now
	l.evictStale(sh, now)
	return true, 0
}

// evictStale выкидывает давно не обращавшихся пользователей, чтобы карта
// не росла бесконечно. Вызывается под мьютексом шарда.
func (l *Limiter) evictStale(sh *shard, now time.Time) {
	for id, last := range sh.last {
		if now.Sub(last) > staleAfter {
			delete(sh.last, id)
		}
	}
}
