package domain

import "time"

// Feedback представляет отзыв пользователя.
type Feedback struct {
	ID        int64
	UserID    int64
	ChatID    int64
	Message   string
	CreatedAt time.Time
}

// FeedbackRepo сохраняет отзывы пользователей.
type FeedbackRepo interface {
	SaveFeedback(fb Feedback) (Feedback, error)
}
