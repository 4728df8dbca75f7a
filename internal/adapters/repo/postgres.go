package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.SourceRepo         = (*Postgres)(nil)
	_ domain.NewsRepo           = (*Postgres)(nil)
	_ domain.UserRepo           = (*Postgres)(nil)
	_ domain.ViewRepo           = (*Postgres)(nil)
	_ domain.StatsRepo          = (*Postgres)(nil)
	_ domain.FeedbackRepo       = (*Postgres)(nil)
	_ domain.AdminStatsRepo     = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

// ErrUserNotFound возвращается, когда пользователь отсутствует в БД.
var ErrUserNotFound = errors.New("пользователь не найден")

// ErrNewsNotFound возвращается, когда новость отсутствует в БД.
var ErrNewsNotFound = errors.New("новость не найдена")

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func (p *Postgres) saveBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}

	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var userID sql.NullInt64
	if metric.UserID != nil {
		userID = sql.NullInt64{Int64: *metric.UserID, Valid: true}
	}

	var sourceID sql.NullInt64
	if metric.SourceID != nil {
		sourceID = sql.NullInt64{Int64: *metric.SourceID, Valid: true}
	}

	var newsID sql.NullInt64
	if metric.NewsID != nil {
		newsID = sql.NullInt64{Int64: *metric.NewsID, Valid: true}
	}

	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, source_id, news_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, metric.Event, userID, sourceID, newsID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	return p.saveBusinessMetric(ctx, metric)
}

// UpsertSource сохраняет источник. Повторная регистрация по тому же URL
// обновляет метаданные, возвращает источник в активное состояние и
// сбрасывает отметку последнего обхода.
func (p *Postgres) UpsertSource(meta domain.SourceMeta) (domain.Source, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var ownerID sql.NullInt64
	if meta.OwnerUserID != nil {
		ownerID = sql.NullInt64{Int64: *meta.OwnerUserID, Valid: true}
	}

	var (
		src        domain.Source
		owner      sql.NullInt64
		lastParsed sql.NullTime
		intervalM  int64
		created    bool
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO sources (owner_user_id, name, url, kind, status)
VALUES ($1, $2, $3, $4, 'active')
ON CONFLICT (url) DO UPDATE SET
    name = COALESCE(NULLIF(EXCLUDED.name, ''), sources.name),
    kind = EXCLUDED.kind,
    status = 'active',
    last_parsed_at = NULL
RETURNING id, owner_user_id, name, url, kind, status, last_parsed_at, parse_interval_minutes, created_at, (xmax = 0) AS inserted
`, ownerID, strings.TrimSpace(meta.Name), strings.TrimSpace(meta.URL), meta.Kind).
		Scan(&src.ID, &owner, &src.Name, &src.URL, &src.Kind, &src.Status, &lastParsed, &intervalM, &src.CreatedAt, &created)
	metrics.ObserveNetworkRequest("postgres", "sources_upsert", "sources", start, err)
	if err != nil {
		return domain.Source{}, err
	}
	if owner.Valid {
		id := owner.Int64
		src.OwnerUserID = &id
	}
	if lastParsed.Valid {
		ts := lastParsed.Time
		src.LastParsedAt = &ts
	}
	src.ParseInterval = time.Duration(intervalM) * time.Minute
	if created {
		srcID := src.ID
		_ = p.saveBusinessMetric(ctx, domain.BusinessMetric{
			Event:    domain.BusinessMetricEventSourceAdded,
			UserID:   src.OwnerUserID,
			SourceID: &srcID,
			Metadata: map[string]any{"kind": src.Kind, "url": src.URL},
		})
	}
	return src, nil
}

// ListActiveSources возвращает активные источники.
func (p *Postgres) ListActiveSources() ([]domain.Source, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, owner_user_id, name, url, kind, status, last_parsed_at, parse_interval_minutes, created_at
FROM sources
WHERE status = 'active'
ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "sources_list_active", "sources", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []domain.Source
	for rows.Next() {
		var (
			src        domain.Source
			owner      sql.NullInt64
			lastParsed sql.NullTime
			intervalM  int64
		)
		if err := rows.Scan(&src.ID, &owner, &src.Name, &src.URL, &src.Kind, &src.Status, &lastParsed, &intervalM, &src.CreatedAt); err != nil {
			return nil, err
		}
		if owner.Valid {
			id := owner.Int64
			src.OwnerUserID = &id
		}
		if lastParsed.Valid {
			ts := lastParsed.Time
			src.LastParsedAt = &ts
		}
		src.ParseInterval = time.Duration(intervalM) * time.Minute
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// MarkSourceParsed фиксирует время последнего обхода источника.
func (p *Postgres) MarkSourceParsed(sourceID int64, at time.Time) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE sources SET last_parsed_at=$2 WHERE id=$1`, sourceID, at)
	metrics.ObserveNetworkRequest("postgres", "sources_mark_parsed", "sources", start, err)
	return err
}

// CountUserSources возвращает число источников, добавленных пользователем.
func (p *Postgres) CountUserSources(ownerUserID int64) (int, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	var count int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sources WHERE owner_user_id=$1`, ownerUserID).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "sources_count_user", "sources", start, err)
	if err != nil {
		return 0, fmt.Errorf("подсчёт источников: %w", err)
	}
	return count, nil
}

// SetSourceStatus переключает состояние источника.
func (p *Postgres) SetSourceStatus(sourceID int64, status domain.SourceStatus) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE sources SET status=$2 WHERE id=$1`, sourceID, status)
	metrics.ObserveNetworkRequest("postgres", "sources_set_status", "sources", start, err)
	return err
}

const newsColumns = `id, source_id, title, content, source_url, image_url, lang, published_at, expires_at, moderation_status, ai_summary, ai_topics, created_at`

func scanNews(row pgx.Row) (domain.NewsItem, error) {
	var (
		item      domain.NewsItem
		sourceID  sql.NullInt64
		imageURL  sql.NullString
		lang      sql.NullString
		expiresAt sql.NullTime
		aiSummary sql.NullString
		aiTopics  []byte
	)
	err := row.Scan(&item.ID, &sourceID, &item.Title, &item.Content, &item.SourceURL, &imageURL, &lang,
		&item.PublishedAt, &expiresAt, &item.Moderation, &aiSummary, &aiTopics, &item.CreatedAt)
	if err != nil {
		return domain.NewsItem{}, err
	}
	if sourceID.Valid {
		id := sourceID.Int64
		item.SourceID = &id
	}
	if imageURL.Valid {
		item.ImageURL = imageURL.String
	}
	if lang.Valid {
		item.Lang = lang.String
	}
	if expiresAt.Valid {
		ts := expiresAt.Time
		item.ExpiresAt = &ts
	}
	if aiSummary.Valid {
		item.AISummary = aiSummary.String
	}
	if len(aiTopics) > 0 {
		_ = json.Unmarshal(aiTopics, &item.AITopics)
	}
	return item, nil
}

// CreateNews сохраняет новость. Уникальность обеспечивается по source_url:
// при конфликте возвращается уже существующая запись и false.
func (p *Postgres) CreateNews(item domain.NewsItem) (domain.NewsItem, bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var sourceID sql.NullInt64
	if item.SourceID != nil {
		sourceID = sql.NullInt64{Int64: *item.SourceID, Valid: true}
	}
	var expiresAt sql.NullTime
	if item.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *item.ExpiresAt, Valid: true}
	}
	var topics []byte
	if len(item.AITopics) > 0 {
		data, err := json.Marshal(item.AITopics)
		if err != nil {
			return domain.NewsItem{}, false, err
		}
		topics = data
	}

	start := time.Now()
	saved, err := scanNews(p.pool.QueryRow(ctx, `
INSERT INTO news (source_id, title, content, source_url, image_url, lang, published_at, expires_at, moderation_status, ai_summary, ai_topics)
VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), $7, $8, $9, NULLIF($10,''), $11)
ON CONFLICT (source_url) DO NOTHING
RETURNING `+newsColumns+`
`, sourceID, item.Title, item.Content, item.SourceURL, item.ImageURL, item.Lang,
		item.PublishedAt, expiresAt, item.Moderation, item.AISummary, topics))
	metrics.ObserveNetworkRequest("postgres", "news_insert", "news", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		start = time.Now()
		existing, getErr := scanNews(p.pool.QueryRow(ctx, `
SELECT `+newsColumns+` FROM news WHERE source_url=$1
`, item.SourceURL))
		metrics.ObserveNetworkRequest("postgres", "news_get_by_url", "news", start, getErr)
		if getErr != nil {
			return domain.NewsItem{}, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return domain.NewsItem{}, false, err
	}
	newsID := saved.ID
	_ = p.saveBusinessMetric(ctx, domain.BusinessMetric{
		Event:    domain.BusinessMetricEventNewsIngested,
		SourceID: saved.SourceID,
		NewsID:   &newsID,
		Metadata: map[string]any{"moderation": saved.Moderation},
	})
	return saved, true, nil
}

// GetNews возвращает новость по идентификатору.
func (p *Postgres) GetNews(id int64) (domain.NewsItem, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	item, err := scanNews(p.pool.QueryRow(ctx, `
SELECT `+newsColumns+` FROM news WHERE id=$1
`, id))
	metrics.ObserveNetworkRequest("postgres", "news_get", "news", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewsItem{}, ErrNewsNotFound
	}
	return item, err
}

// ListPendingIDs возвращает идентификаторы новостей, ожидающих модерации,
// в порядке от старых к новым.
func (p *Postgres) ListPendingIDs() ([]int64, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id FROM news
WHERE moderation_status = 'pending'
ORDER BY published_at ASC, id ASC
`)
	metrics.ObserveNetworkRequest("postgres", "news_list_pending", "news", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetModerationStatus обновляет статус модерации новости.
func (p *Postgres) SetModerationStatus(id int64, status domain.ModerationStatus) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE news SET moderation_status=$2 WHERE id=$1`, id, status)
	metrics.ObserveNetworkRequest("postgres", "news_set_moderation", "news", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNewsNotFound
	}
	newsID := id
	_ = p.saveBusinessMetric(ctx, domain.BusinessMetric{
		Event:    domain.BusinessMetricEventNewsModerated,
		NewsID:   &newsID,
		Metadata: map[string]any{"status": status},
	})
	return nil
}

// SaveAIEnrichment сохраняет результаты AI-обработки новости.
func (p *Postgres) SaveAIEnrichment(id int64, summary string, topics []string) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	var topicsJSON []byte
	if len(topics) > 0 {
		data, err := json.Marshal(topics)
		if err != nil {
			return err
		}
		topicsJSON = data
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE news SET ai_summary=NULLIF($2,''), ai_topics=$3 WHERE id=$1
`, id, summary, topicsJSON)
	metrics.ObserveNetworkRequest("postgres", "news_save_ai", "news", start, err)
	return err
}

// DeleteExpired удаляет новости с истёкшим сроком жизни и возвращает их количество.
func (p *Postgres) DeleteExpired(now time.Time) (int64, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
DELETE FROM news WHERE expires_at IS NOT NULL AND expires_at <= $1
`, now)
	metrics.ObserveNetworkRequest("postgres", "news_delete_expired", "news", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListUnseenApproved возвращает одобренные новости, которые пользователь ещё не видел,
// от свежих к старым.
func (p *Postgres) ListUnseenApproved(userID int64, limit int) ([]domain.NewsItem, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+newsColumns+`
FROM news n
WHERE n.moderation_status = 'approved'
  AND (n.expires_at IS NULL OR n.expires_at > now())
  AND NOT EXISTS (SELECT 1 FROM news_views v WHERE v.user_id = $1 AND v.news_id = n.id)
ORDER BY n.published_at DESC, n.id DESC
LIMIT $2
`, userID, limit)
	metrics.ObserveNetworkRequest("postgres", "news_list_unseen", "news", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.NewsItem
	for rows.Next() {
		item, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkViewed фиксирует просмотр новости. Повторный просмотр не считается ошибкой.
func (p *Postgres) MarkViewed(userID, newsID int64) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO news_views (user_id, news_id)
VALUES ($1, $2)
ON CONFLICT (user_id, news_id) DO NOTHING
`, userID, newsID)
	metrics.ObserveNetworkRequest("postgres", "news_views_insert", "news_views", start, err)
	return err
}

// IncrementPublished увеличивает счётчик публикаций источника.
func (p *Postgres) IncrementPublished(sourceID int64) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO source_stats (source_id, published_count)
VALUES ($1, 1)
ON CONFLICT (source_id) DO UPDATE SET published_count = source_stats.published_count + 1
`, sourceID)
	metrics.ObserveNetworkRequest("postgres", "source_stats_increment", "source_stats", start, err)
	if err != nil {
		return err
	}

	_ = p.saveBusinessMetric(ctx, domain.BusinessMetric{
		Event:    domain.BusinessMetricEventNewsPublished,
		SourceID: &sourceID,
	})
	return nil
}

// ListSourceStats возвращает счётчики публикаций по источникам.
func (p *Postgres) ListSourceStats() ([]domain.SourceStat, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT source_id, published_count FROM source_stats ORDER BY published_count DESC
`)
	metrics.ObserveNetworkRequest("postgres", "source_stats_list", "source_stats", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stats []domain.SourceStat
	for rows.Next() {
		var st domain.SourceStat
		if err := rows.Scan(&st.SourceID, &st.PublishedCount); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

const userColumns = `id, tg_user_id, username, first_name, locale, role, is_admin, digest_enabled, digest_daily, last_active_at, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user      domain.User
		username  sql.NullString
		firstName sql.NullString
	)
	err := row.Scan(&user.ID, &user.TGUserID, &username, &firstName, &user.Locale, &user.Role, &user.IsAdmin,
		&user.DigestEnabled, &user.DigestDaily, &user.LastActiveAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}
	if username.Valid {
		user.Username = username.String
	}
	if firstName.Valid {
		user.FirstName = firstName.String
	}
	return user, nil
}

// UpsertByTGID реализует domain.UserRepo.
func (p *Postgres) UpsertByTGID(profile domain.TelegramProfile) (domain.User, bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	locale := strings.TrimSpace(profile.Locale)
	username := strings.TrimSpace(profile.Username)
	firstName := strings.TrimSpace(profile.FirstName)

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO users (tg_user_id, username, first_name, locale)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), COALESCE(NULLIF($4,''),'ru'))
ON CONFLICT (tg_user_id) DO UPDATE SET
    username = EXCLUDED.username,
    first_name = EXCLUDED.first_name,
    locale = EXCLUDED.locale,
    last_active_at = now(),
    updated_at = now()
RETURNING `+userColumns+`, (xmax = 0) AS inserted
`, profile.TGUserID, username, firstName, locale)
	var (
		user      domain.User
		usernameV sql.NullString
		firstV    sql.NullString
		created   bool
	)
	err := row.Scan(&user.ID, &user.TGUserID, &usernameV, &firstV, &user.Locale, &user.Role, &user.IsAdmin,
		&user.DigestEnabled, &user.DigestDaily, &user.LastActiveAt, &user.CreatedAt, &user.UpdatedAt, &created)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	if err != nil {
		return domain.User{}, false, err
	}
	if usernameV.Valid {
		user.Username = usernameV.String
	}
	if firstV.Valid {
		user.FirstName = firstV.String
	}
	if created {
		userID := user.ID
		_ = p.saveBusinessMetric(ctx, domain.BusinessMetric{
			Event:    domain.BusinessMetricEventUserRegistered,
			UserID:   &userID,
			Metadata: map[string]any{"tg_user_id": user.TGUserID, "locale": user.Locale},
		})
	}
	return user, created, nil
}

// GetByTGID возвращает пользователя по Telegram ID.
func (p *Postgres) GetByTGID(tgUserID int64) (domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	user, err := scanUser(p.pool.QueryRow(ctx, `
SELECT `+userColumns+` FROM users WHERE tg_user_id=$1
`, tgUserID))
	metrics.ObserveNetworkRequest("postgres", "users_get_by_tgid", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// ListDigestRecipients возвращает пользователей с включённым ежедневным дайджестом.
func (p *Postgres) ListDigestRecipients() ([]domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+userColumns+` FROM users WHERE digest_enabled AND digest_daily
`)
	metrics.ObserveNetworkRequest("postgres", "users_list_digest", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetDigestEnabled переключает доставку дайджеста.
func (p *Postgres) SetDigestEnabled(userID int64, enabled bool) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE users SET digest_enabled=$2, updated_at=now() WHERE id=$1`, userID, enabled)
	metrics.ObserveNetworkRequest("postgres", "users_set_digest", "users", start, err)
	return err
}

// TouchLastActive обновляет время последней активности пользователя.
func (p *Postgres) TouchLastActive(userID int64) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE users SET last_active_at=now() WHERE id=$1`, userID)
	metrics.ObserveNetworkRequest("postgres", "users_touch_active", "users", start, err)
	return err
}

// UpdateRole обновляет тариф пользователя.
func (p *Postgres) UpdateRole(userID int64, role domain.UserRole) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE users SET role=$2, updated_at=now() WHERE id=$1`, userID, role)
	metrics.ObserveNetworkRequest("postgres", "users_update_role", "users", start, err)
	return err
}

// SetAdmin назначает или снимает права администратора.
func (p *Postgres) SetAdmin(userID int64, admin bool) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE users SET is_admin=$2, updated_at=now() WHERE id=$1`, userID, admin)
	metrics.ObserveNetworkRequest("postgres", "users_set_admin", "users", start, err)
	return err
}

// SaveFeedback сохраняет отзыв пользователя.
func (p *Postgres) SaveFeedback(fb domain.Feedback) (domain.Feedback, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO feedback (user_id, chat_id, message)
VALUES ($1, $2, $3)
RETURNING id, created_at
`, fb.UserID, fb.ChatID, fb.Message).Scan(&fb.ID, &fb.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "feedback_insert", "feedback", start, err)
	return fb, err
}

// SystemStats собирает сводку для административного API.
func (p *Postgres) SystemStats() (domain.SystemStats, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var stats domain.SystemStats
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT
    (SELECT COUNT(*) FROM users),
    (SELECT COUNT(*) FROM news),
    (SELECT COUNT(*) FROM news WHERE moderation_status='pending'),
    (SELECT COUNT(*) FROM sources WHERE status='active'),
    (SELECT COUNT(*) FROM news_views WHERE viewed_at >= date_trunc('day', now()))
`).Scan(&stats.Users, &stats.News, &stats.PendingNews, &stats.Sources, &stats.ViewsToday)
	metrics.ObserveNetworkRequest("postgres", "system_stats", "news", start, err)
	return stats, err
}

// ListNews возвращает новости по статусу модерации для административного API.
func (p *Postgres) ListNews(status domain.ModerationStatus, limit, offset int) ([]domain.NewsItem, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+newsColumns+`
FROM news
WHERE moderation_status = $1
ORDER BY published_at DESC, id DESC
LIMIT $2 OFFSET $3
`, status, limit, offset)
	metrics.ObserveNetworkRequest("postgres", "news_list_by_status", "news", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.NewsItem
	for rows.Next() {
		item, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
