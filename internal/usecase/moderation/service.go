package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
)

var (
	// ErrNotAdmin возвращается при попытке модерации без прав администратора.
	ErrNotAdmin = errors.New("модерация доступна только администраторам")
	// ErrNoPending возвращается, когда очередь модерации пуста.
	ErrNoPending = errors.New("нет новостей на модерации")
	// ErrReviewNotStarted возвращается, когда сценарий модерации не запущен.
	ErrReviewNotStarted = errors.New("сценарий модерации не запущен")
	// ErrAtStart возвращается на попытку шагнуть назад с первой позиции.
	ErrAtStart = errors.New("это первая новость в очереди")
	// ErrAtEnd возвращается на попытку шагнуть вперёд с последней позиции.
	ErrAtEnd = errors.New("это последняя новость в очереди")
	// ErrQueueDrained возвращается после решения по последней новости очереди.
	ErrQueueDrained = errors.New("очередь модерации закончилась")
	// ErrItemGone возвращается, когда текущая новость уже обработана или удалена.
	ErrItemGone = errors.New("новость уже обработана или удалена")
)

const sessionTTL = 6 * time.Hour

// State хранит снимок очереди модерации и позицию курсора.
type State struct {
	NewsIDs []int64 `json:"news_ids"`
	Cursor  int     `json:"cursor"`
}

// Current возвращает идентификатор новости под курсором.
func (st State) Current() (int64, bool) {
	if st.Cursor < 0 || st.Cursor >= len(st.NewsIDs) {
		return 0, false
	}
	return st.NewsIDs[st.Cursor], true
}

// removeCurrent удаляет новость под курсором и прижимает курсор к границе
// укоротившейся очереди.
func (st State) removeCurrent() State {
	if _, ok := st.Current(); !ok {
		return st
	}
	ids := make([]int64, 0, len(st.NewsIDs)-1)
	ids = append(ids, st.NewsIDs[:st.Cursor]...)
	ids = append(ids, st.NewsIDs[st.Cursor+1:]...)
	cursor := st.Cursor
	if cursor >= len(ids) {
		cursor = len(ids) - 1
	}
	return State{NewsIDs: ids, Cursor: cursor}
}

// Review описывает новость, показанную модератору.
type Review struct {
	Item     domain.NewsItem
	Position int
	Total    int
}

// Service реализует пошаговую модерацию новостей.
type Service struct {
	news      domain.NewsRepo
	sessions  domain.SessionStore
	publisher domain.Publisher
	log       zerolog.Logger
}

// NewService создаёт сервис модерации.
func NewService(news domain.NewsRepo, sessions domain.SessionStore, publisher domain.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		news:      news,
		sessions:  sessions,
		publisher: publisher,
		log:       logger.With().Str("component", "moderation").Logger(),
	}
}

// Start открывает очередь модерации заново и показывает первую новость.
func (s *Service) Start(ctx context.Context, user domain.User) (Review, error) {
	if !user.IsAdmin {
		return Review{}, ErrNotAdmin
	}

	ids, err := s.news.ListPendingIDs()
	if err != nil {
		return Review{}, fmt.Errorf("очередь модерации: %w", err)
	}
	if len(ids) == 0 {
		return Review{}, ErrNoPending
	}

	state := State{NewsIDs: ids, Cursor: 0}
	if err := s.saveState(user.ID, state); err != nil {
		return Review{}, err
	}
	return s.review(state)
}

// Next переходит к следующей новости очереди. Состояние не меняется,
// если курсор уже на последней позиции.
func (s *Service) Next(ctx context.Context, user domain.User) (Review, error) {
	state, err := s.loadState(user)
	if err != nil {
		return Review{}, err
	}
	if state.Cursor+1 >= len(state.NewsIDs) {
		return Review{}, ErrAtEnd
	}
	state.Cursor++
	if err := s.saveState(user.ID, state); err != nil {
		return Review{}, err
	}
	return s.review(state)
}

// Prev переходит к предыдущей новости очереди.
func (s *Service) Prev(ctx context.Context, user domain.User) (Review, error) {
	state, err := s.loadState(user)
	if err != nil {
		return Review{}, err
	}
	if state.Cursor == 0 {
		return Review{}, ErrAtStart
	}
	state.Cursor--
	if err := s.saveState(user.ID, state); err != nil {
		return Review{}, err
	}
	return s.review(state)
}

// Approve одобряет текущую новость и ставит её в очередь публикации.
func (s *Service) Approve(ctx context.Context, user domain.User) (Review, error) {
	return s.decide(ctx, user, domain.ModerationApproved)
}

// Reject отклоняет текущую новость.
func (s *Service) Reject(ctx context.Context, user domain.User) (Review, error) {
	return s.decide(ctx, user, domain.ModerationRejected)
}

func (s *Service) decide(ctx context.Context, user domain.User, verdict domain.ModerationStatus) (Review, error) {
	state, err := s.loadState(user)
	if err != nil {
		return Review{}, err
	}
	id, ok := state.Current()
	if !ok {
		return Review{}, ErrReviewNotStarted
	}

	item, err := s.news.GetNews(id)
	if err != nil {
		// новость могла быть удалена чисткой, выкидываем её из снимка
		return s.dropCurrent(user, state, ErrItemGone)
	}
	if item.Moderation != domain.ModerationPending {
		return s.dropCurrent(user, state, ErrItemGone)
	}

	if err := s.news.SetModerationStatus(id, verdict); err != nil {
		return Review{}, fmt.Errorf("обновление статуса: %w", err)
	}
	item.Moderation = verdict

	if verdict == domain.ModerationApproved {
		if err := s.publisher.PublishNews(ctx, item); err != nil {
			s.log.Error().Err(err).Int64("news_id", item.ID).Msg("не удалось поставить публикацию в очередь")
		}
	}

	return s.dropCurrent(user, state, ErrQueueDrained)
}

// dropCurrent удаляет текущую новость из снимка и возвращает следующую
// позицию либо drained, если очередь закончилась.
func (s *Service) dropCurrent(user domain.User, state State, drained error) (Review, error) {
	state = state.removeCurrent()
	if len(state.NewsIDs) == 0 {
		if err := s.sessions.DeleteSession(user.ID, domain.WorkflowModeration); err != nil {
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("не удалось удалить состояние модерации")
		}
		return Review{}, drained
	}
	if err := s.saveState(user.ID, state); err != nil {
		return Review{}, err
	}
	return s.review(state)
}

func (s *Service) review(state State) (Review, error) {
	id, ok := state.Current()
	if !ok {
		return Review{}, ErrReviewNotStarted
	}
	item, err := s.news.GetNews(id)
	if err != nil {
		return Review{}, fmt.Errorf("получение новости: %w", err)
	}
	return Review{Item: item, Position: state.Cursor + 1, Total: len(state.NewsIDs)}, nil
}

func (s *Service) loadState(user domain.User) (State, error) {
	if !user.IsAdmin {
		return State{}, ErrNotAdmin
	}
	data, err := s.sessions.LoadSession(user.ID, domain.WorkflowModeration)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return State{}, ErrReviewNotStarted
	}
	if err != nil {
		return State{}, fmt.Errorf("загрузка состояния: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("разбор состояния: %w", err)
	}
	if len(state.NewsIDs) == 0 {
		return State{}, ErrReviewNotStarted
	}
	return state, nil
}

func (s *Service) saveState(userID int64, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("сериализация состояния: %w", err)
	}
	if err := s.sessions.SaveSession(userID, domain.WorkflowModeration, data, sessionTTL); err != nil {
		return fmt.Errorf("сохранение состояния: %w", err)
	}
	return nil
}
