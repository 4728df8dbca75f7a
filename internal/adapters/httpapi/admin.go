package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	infrahttp "tg-news-bot/internal/infra/http"
)

// AdminAPI обслуживает административные маршруты.
type AdminAPI struct {
	stats       domain.AdminStatsRepo
	news        domain.NewsRepo
	users       domain.UserRepo
	sourceStats domain.StatsRepo
	log         zerolog.Logger
}

// NewAdminAPI создаёт административный API.
func NewAdminAPI(stats domain.AdminStatsRepo, news domain.NewsRepo, users domain.UserRepo, sourceStats domain.StatsRepo, logger zerolog.Logger) *AdminAPI {
	return &AdminAPI{
		stats:       stats,
		news:        news,
		users:       users,
		sourceStats: sourceStats,
		log:         logger.With().Str("component", "admin_api").Logger(),
	}
}

// Mount регистрирует маршруты под /api/admin за проверкой API-ключа.
func (a *AdminAPI) Mount(r chi.Router, apiKey string) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(infrahttp.APIKeyMiddleware(apiKey))
		r.Get("/stats", a.handleStats)
		r.Get("/news", a.handleListNews)
		r.Put("/news/{id}/status", a.handleSetStatus)
		r.Get("/sources/stats", a.handleSourceStats)
		r.Put("/users/{id}/role", a.handleSetRole)
	})
}

type statsResponse struct {
	Users       int64 `json:"users"`
	Sources     int64 `json:"sources"`
	News        int64 `json:"news"`
	PendingNews int64 `json:"pending_news"`
	ViewsToday  int64 `json:"views_today"`
}

func (a *AdminAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.stats.SystemStats()
	if err != nil {
		a.log.Error().Err(err).Str("request_id", infrahttp.RequestID(r)).Msg("не удалось собрать сводку")
		infrahttp.WriteError(w, http.StatusInternalServerError, errors.New("не удалось собрать сводку"))
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Users:       stats.Users,
		Sources:     stats.Sources,
		News:        stats.News,
		PendingNews: stats.PendingNews,
		ViewsToday:  stats.ViewsToday,
	})
}

type newsResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	SourceURL   string    `json:"source_url"`
	Moderation  string    `json:"moderation_status"`
	PublishedAt time.Time `json:"published_at"`
}

func (a *AdminAPI) handleListNews(w http.ResponseWriter, r *http.Request) {
	status := domain.ModerationStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.ModerationPending
	}
	switch status {
	case domain.ModerationPending, domain.ModerationApproved, domain.ModerationRejected:
	default:
		infrahttp.WriteError(w, http.StatusBadRequest, errors.New("неизвестный статус модерации"))
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	items, err := a.stats.ListNews(status, limit, offset)
	if err != nil {
		a.log.Error().Err(err).Str("request_id", infrahttp.RequestID(r)).Msg("не удалось получить список новостей")
		infrahttp.WriteError(w, http.StatusInternalServerError, errors.New("не удалось получить список новостей"))
		return
	}

	resp := make([]newsResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, newsResponse{
			ID:          item.ID,
			Title:       item.Title,
			SourceURL:   item.SourceURL,
			Moderation:  string(item.Moderation),
			PublishedAt: item.PublishedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (a *AdminAPI) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		infrahttp.WriteError(w, http.StatusBadRequest, errors.New("некорректный идентификатор новости"))
		return
	}

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		infrahttp.WriteError(w, http.StatusBadRequest, errors.New("некорректное тело запроса"))
		return
	}
	status := domain.ModerationStatus(req.Status)
	switch status {
	case domain.ModerationApproved, domain.ModerationRejected, domain.ModerationPending:
	default:
		infrahttp.WriteError(w, http.StatusBadRequest, errors.New("неизвестный статус модерации"))
		return
	}

	if err := a.news.SetModerationStatus(id, status); err != nil {
		a.log.Error().Err(err).Int64("news_id", id).Str("request_id", infrahttp.RequestID(r)).Msg("не удалось обновить статус")
		infrahttp.WriteError(w, http.StatusNotFound, errors.New("новость не найдена"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

type sourceStatResponse struct {
	SourceID       int64 `json:"source_id"`
	PublishedCount int64 `json:"published_count"`
}

func (a *AdminAPI) handleSourceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.sourceStats.ListSourceStats()
	if err != nil {
		a.log.Error().Err(err).Str("request_id", infrahttp.RequestID(r)).Msg("не удалось получить статистику источников")
		infrahttp.WriteError(w, http.StatusInternalServerError, errors.New("не удалось получить статистику источников"))
		return
	}
	resp := make([]sourceStatResponse, 0, len(stats))
	for _, st := range stats {
		resp = append(resp, sourceStatResponse{SourceID: st.SourceID, PublishedCount: st.PublishedCount})
	}
	writeJSON(w, http.StatusOK, resp)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (a *AdminAPI) handleSetRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		infrahttp.WriteError(w, http.StatusBadRequest, errors.New("некорректный идентификатор пользователя"))
		return
	}

	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		infrahttp.WriteError(w, http.StatusBadRequest, errors.New("некорректное тело запроса"))
		return
	}
	role := domain.UserRole(req.Role)
	if !role.Valid() {
		infrahttp.WriteError(w, http.StatusBadRequest, errors.New("неизвестная роль"))
		return
	}

	if err := a.users.UpdateRole(id, role); err != nil {
		a.log.Error().Err(err).Int64("user_id", id).Str("request_id", infrahttp.RequestID(r)).Msg("не удалось обновить роль")
		infrahttp.WriteError(w, http.StatusNotFound, errors.New("пользователь не найден"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": string(role)})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
