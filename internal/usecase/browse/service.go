package browse

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
	// ErrNoNews возвращается, когда у пользователя нет непросмотренных новостей.
	ErrNoNews = errors.New("свежих новостей пока нет")
	// ErrBrowseNotStarted возвращается, когда сценарий просмотра не запущен.
	ErrBrowseNotStarted = errors.New("сценарий просмотра не запущен")
	// ErrAtStart возвращается на попытку шагнуть назад с первой новости.
	ErrAtStart = errors.New("это первая новость")
	// ErrAtEnd возвращается на попытку шагнуть вперёд с последней новости.
	ErrAtEnd = errors.New("это последняя новость")
)

const (
	defaultWindow = 100
	sessionTTL    = 12 * time.Hour
)

// State хранит снимок ленты пользователя и позицию курсора.
type State struct {
	NewsIDs []int64 `json:"news_ids"`
	Cursor  int     `json:"cursor"`
}

// Page описывает новость, показанную пользователю.
type Page struct {
	Item     domain.NewsItem
	Position int
	Total    int
}

// Service реализует пошаговый просмотр непрочитанных новостей.
type Service struct {
	news     domain.NewsRepo
	views    domain.ViewRepo
	sessions domain.SessionStore
	window   int
	log      zerolog.Logger
}

// NewService создаёт сервис просмотра. window ограничивает размер снимка
// ленты, при нуле берётся значение по умолчанию.
func NewService(news domain.NewsRepo, views domain.ViewRepo, sessions domain.SessionStore, window int, logger zerolog.Logger) *Service {
	if window <= 0 {
		window = defaultWindow
	}
	return &Service{
		news:     news,
		views:    views,
		sessions: sessions,
		window:   window,
		log:      logger.With().Str("component", "browse").Logger(),
	}
}

// Start делает снимок непросмотренных новостей и показывает первую.
func (s *Service) Start(ctx context.Context, user domain.User) (Page, error) {
	items, err := s.news.ListUnseenApproved(user.ID, s.window)
	if err != nil {
		return Page{}, fmt.Errorf("лента новостей: %w", err)
	}
	if len(items) == 0 {
		return Page{}, ErrNoNews
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	state := State{NewsIDs: ids, Cursor: 0}
	if err := s.saveState(user.ID, state); err != nil {
		return Page{}, err
	}
	return s.show(user, state)
}

// Next переходит к следующей новости снимка.
func (s *Service) Next(ctx context.Context, user domain.User) (Page, error) {
	state, err := s.loadState(user.ID)
	if err != nil {
		return Page{}, err
	}
	if state.Cursor+1 >= len(state.NewsIDs) {
		return Page{}, ErrAtEnd
	}
	state.Cursor++
	if err := s.saveState(user.ID, state); err != nil {
		return Page{}, err
	}
	return s.show(user, state)
}

// Prev возвращается к предыдущей новости снимка.
func (s *Service) Prev(ctx context.Context, user domain.User) (Page, error) {
	state, err := s.loadState(user.ID)
	if err != nil {
		return Page{}, err
	}
	if state.Cursor == 0 {
		return Page{}, ErrAtStart
	}
	state.Cursor--
	if err := s.saveState(user.ID, state); err != nil {
		return Page{}, err
	}
	return s.show(user, state)
}

// Stop завершает сценарий просмотра.
func (s *Service) Stop(ctx context.Context, user domain.User) error {
	if err := s.sessions.DeleteSession(user.ID, domain.WorkflowBrowse); err != nil {
		return fmt.Errorf("удаление состояния: %w", err)
	}
	return nil
}

// show загружает новость под курсором и отмечает её просмотренной.
// Отметка идемпотентна, повторный показ той же новости безвреден.
func (s *Service) show(user domain.User, state State) (Page, error) {
	id := state.NewsIDs[state.Cursor]
	item, err := s.news.GetNews(id)
	if err != nil {
		return Page{}, fmt.Errorf("получение новости: %w", err)
	}
	if err := s.views.MarkViewed(user.ID, id); err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Int64("news_id", id).Msg("не удалось отметить просмотр")
	}
	return Page{Item: item, Position: state.Cursor + 1, Total: len(state.NewsIDs)}, nil
}

func (s *Service) loadState(userID int64) (State, error) {
	data, err := s.sessions.LoadSession(userID, domain.WorkflowBrowse)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return State{}, ErrBrowseNotStarted
	}
	if err != nil {
		return State{}, fmt.Errorf("загрузка состояния: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("разбор состояния: %w", err)
	}
	if len(state.NewsIDs) == 0 {
		return State{}, ErrBrowseNotStarted
	}
	return state, nil
}

func (s *Service) saveState(userID int64, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("сериализация состояния: %w", err)
	}
	if err := s.sessions.SaveSession(userID, domain.WorkflowBrowse, data, sessionTTL); err != nil {
		return fmt.Errorf("сохранение состояния: %w", err)
	}
	return nil
}
