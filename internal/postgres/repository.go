package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/osudroid-server/internal/config"
	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/rank"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(32) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL DEFAULT '',
			email_md5 VARCHAR(32) NOT NULL DEFAULT '',
			password_hash VARCHAR(72) NOT NULL DEFAULT '',
			session VARCHAR(36) NOT NULL DEFAULT '',
			device_ids TEXT[] NOT NULL DEFAULT '{}',
			playing VARCHAR(64) NOT NULL DEFAULT '',
			last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS statistics (
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			mode INT NOT NULL DEFAULT 0,
			pp DOUBLE PRECISION NOT NULL DEFAULT 0,
			ranked_score BIGINT NOT NULL DEFAULT 0,
			total_score BIGINT NOT NULL DEFAULT 0,
			play_count BIGINT NOT NULL DEFAULT 0,
			accuracy DOUBLE PRECISION NOT NULL DEFAULT 100,
			PRIMARY KEY (player_id, mode)
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			map_hash VARCHAR(64) NOT NULL,
			mode INT NOT NULL DEFAULT 0,
			score BIGINT NOT NULL,
			max_combo INT NOT NULL,
			grade VARCHAR(4) NOT NULL,
			geki INT NOT NULL,
			n300 INT NOT NULL,
			katu INT NOT NULL,
			n100 INT NOT NULL,
			n50 INT NOT NULL,
			miss INT NOT NULL,
			accuracy DOUBLE PRECISION NOT NULL,
			mods VARCHAR(64) NOT NULL DEFAULT '-',
			speed DOUBLE PRECISION NOT NULL DEFAULT 1,
			fc BOOLEAN NOT NULL DEFAULT FALSE,
			device_id VARCHAR(64) NOT NULL DEFAULT '',
			pp DOUBLE PRECISION NOT NULL DEFAULT 0,
			status INT NOT NULL,
			date TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS score_events (
			id BIGSERIAL PRIMARY KEY,
			score_id BIGINT NOT NULL,
			player_id BIGINT NOT NULL,
			map_hash VARCHAR(64) NOT NULL,
			event_type VARCHAR(20) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_map_status ON scores(map_hash, status)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_player_map ON scores(player_id, map_hash, status)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_player_pp ON scores(player_id, status, pp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_score_events_score ON score_events(score_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// scoreMetricColumn maps the configured metric onto the scores column used
// for comparisons. Both score-based metrics compare the raw score.
func scoreMetricColumn(metric domain.Metric) string {
	if metric == domain.MetricPP {
		return "pp"
	}
	return "score"
}

// statsMetricColumn maps the configured metric onto the statistics column.
func statsMetricColumn(metric domain.Metric) string {
	switch metric {
	case domain.MetricRankedScore:
		return "ranked_score"
	case domain.MetricTotalScore:
		return "total_score"
	default:
		return "pp"
	}
}

const playerColumns = `id, username, email, email_md5, password_hash, session, device_ids, playing, last_seen, created_at`

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.Email,
		&p.EmailMD5,
		&p.PasswordHash,
		&p.Session,
		&p.DeviceIDs,
		&p.Playing,
		&p.LastSeen,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("scanning player: %w", err)
	}
	return &p, nil
}

// CreatePlayer inserts a new player and assigns its id
func (r *Repository) CreatePlayer(ctx context.Context, p *domain.Player) error {
	query := `
		INSERT INTO players (username, email, email_md5, password_hash, session, device_ids, last_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`
	now := time.Now()
	err := r.pool.QueryRow(ctx, query,
		p.Username, p.Email, p.EmailMD5, p.PasswordHash, p.Session, p.DeviceIDs, now,
	).Scan(&p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("creating player: %w", err)
	}
	p.LastSeen = now
	p.CreatedAt = now
	return nil
}

// GetPlayer retrieves a player by id
func (r *Repository) GetPlayer(ctx context.Context, id int64) (*domain.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`
	return scanPlayer(r.pool.QueryRow(ctx, query, id))
}

// GetPlayerByUsername retrieves a player by username
func (r *Repository) GetPlayerByUsername(ctx context.Context, username string) (*domain.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE username = $1`
	return scanPlayer(r.pool.QueryRow(ctx, query, username))
}

// UpdatePlaying sets the beatmap hash the player is currently attempting
func (r *Repository) UpdatePlaying(ctx context.Context, playerID int64, hash string) error {
	query := `UPDATE players SET playing = $2, last_seen = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, playerID, hash)
	if err != nil {
		return fmt.Errorf("updating playing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

// UpdateSession rotates the player's session token
func (r *Repository) UpdateSession(ctx context.Context, playerID int64, session string) error {
	query := `UPDATE players SET session = $2, last_seen = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, playerID, session)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

// AddDeviceID appends a device id to the player's known devices unless
// already recorded.
func (r *Repository) AddDeviceID(ctx context.Context, playerID int64, deviceID string) error {
	query := `
		UPDATE players SET device_ids = array_append(device_ids, $2)
		WHERE id = $1 AND NOT ($2 = ANY(device_ids))
	`
	if _, err := r.pool.Exec(ctx, query, playerID, deviceID); err != nil {
		return fmt.Errorf("adding device id: %w", err)
	}
	return nil
}

// GetStatistics retrieves a player's per-mode statistics, creating the
// default row on first access.
func (r *Repository) GetStatistics(ctx context.Context, playerID int64, mode domain.GameMode) (*domain.Statistics, error) {
	query := `
		INSERT INTO statistics (player_id, mode)
		VALUES ($1, $2)
		ON CONFLICT (player_id, mode) DO UPDATE SET mode = statistics.mode
		RETURNING player_id, mode, pp, ranked_score, total_score, play_count, accuracy
	`
	var s domain.Statistics
	err := r.pool.QueryRow(ctx, query, playerID, mode).Scan(
		&s.PlayerID, &s.Mode, &s.PP, &s.RankedScore, &s.TotalScore, &s.PlayCount, &s.Accuracy,
	)
	if err != nil {
		return nil, fmt.Errorf("getting statistics: %w", err)
	}
	return &s, nil
}

const upsertStatisticsQuery = `
	INSERT INTO statistics (player_id, mode, pp, ranked_score, total_score, play_count, accuracy)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (player_id, mode)
	DO UPDATE SET pp = $3, ranked_score = $4, total_score = $5, play_count = $6, accuracy = $7
`

// SaveStatistics persists a recomputed statistics row
func (r *Repository) SaveStatistics(ctx context.Context, s *domain.Statistics) error {
	_, err := r.pool.Exec(ctx, upsertStatisticsQuery,
		s.PlayerID, s.Mode, s.PP, s.RankedScore, s.TotalScore, s.PlayCount, s.Accuracy)
	if err != nil {
		return fmt.Errorf("saving statistics: %w", err)
	}
	return nil
}

const scoreColumns = `id, player_id, map_hash, mode, score, max_combo, grade, geki, n300, katu, n100, n50, miss, accuracy, mods, speed, fc, device_id, pp, status, date`

func scanScore(row pgx.Row) (*domain.Score, error) {
	var s domain.Score
	err := row.Scan(
		&s.ID, &s.PlayerID, &s.MapHash, &s.Mode, &s.Score, &s.MaxCombo, &s.Grade,
		&s.Geki, &s.N300, &s.Katu, &s.N100, &s.N50, &s.Miss,
		&s.Accuracy, &s.Mods, &s.Speed, &s.FullCombo, &s.DeviceID, &s.PP, &s.Status, &s.Date,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScoreNotFound
		}
		return nil, fmt.Errorf("scanning score: %w", err)
	}
	return &s, nil
}

// GetScore retrieves a score by id
func (r *Repository) GetScore(ctx context.Context, id int64) (*domain.Score, error) {
	query := `SELECT ` + scoreColumns + ` FROM scores WHERE id = $1`
	return scanScore(r.pool.QueryRow(ctx, query, id))
}

// GetBestScore retrieves the player's current best-status score on a
// beatmap. Returns nil without error when the player has none.
func (r *Repository) GetBestScore(ctx context.Context, playerID int64, mapHash string) (*domain.Score, error) {
	query := `SELECT ` + scoreColumns + ` FROM scores
		WHERE player_id = $1 AND map_hash = $2 AND status IN ($3, $4)
		LIMIT 1`
	score, err := scanScore(r.pool.QueryRow(ctx, query, playerID, mapHash, domain.StatusBest, domain.StatusApproved))
	if errors.Is(err, domain.ErrScoreNotFound) {
		return nil, nil
	}
	return score, err
}

const insertScoreQuery = `
	INSERT INTO scores (player_id, map_hash, mode, score, max_combo, grade, geki, n300, katu, n100, n50, miss, accuracy, mods, speed, fc, device_id, pp, status, date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	RETURNING id
`

func insertScoreArgs(s *domain.Score) []any {
	return []any{
		s.PlayerID, s.MapHash, s.Mode, s.Score, s.MaxCombo, s.Grade,
		s.Geki, s.N300, s.Katu, s.N100, s.N50, s.Miss,
		s.Accuracy, s.Mods, s.Speed, s.FullCombo, s.DeviceID, s.PP, s.Status, s.Date,
	}
}

// InsertScore persists a score outside the best-swap transaction. Used for
// failed attempts when the deployment keeps them.
func (r *Repository) InsertScore(ctx context.Context, s *domain.Score) error {
	err := r.pool.QueryRow(ctx, insertScoreQuery, insertScoreArgs(s)...).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("inserting score: %w", err)
	}
	return nil
}

// SubmitBest atomically installs a new user best: every best-status score
// the player currently holds on the beatmap is demoted to SUBMITTED, the
// new score is inserted, and the recomputed statistics row is saved, all in
// one transaction. This keeps at most one best per (player, beatmap) under
// concurrent submissions.
func (r *Repository) SubmitBest(ctx context.Context, s *domain.Score, stats *domain.Statistics) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	demote := `UPDATE scores SET status = $1 WHERE player_id = $2 AND map_hash = $3 AND status IN ($4, $5)`
	if _, err := tx.Exec(ctx, demote, domain.StatusSubmitted, s.PlayerID, s.MapHash, domain.StatusBest, domain.StatusApproved); err != nil {
		return fmt.Errorf("demoting previous best: %w", err)
	}

	if err := tx.QueryRow(ctx, insertScoreQuery, insertScoreArgs(s)...).Scan(&s.ID); err != nil {
		return fmt.Errorf("inserting best score: %w", err)
	}

	if _, err := tx.Exec(ctx, upsertStatisticsQuery,
		stats.PlayerID, stats.Mode, stats.PP, stats.RankedScore, stats.TotalScore, stats.PlayCount, stats.Accuracy,
	); err != nil {
		return fmt.Errorf("saving statistics: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE players SET last_seen = NOW() WHERE id = $1`, s.PlayerID); err != nil {
		return fmt.Errorf("touching player: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing submission: %w", err)
	}
	return nil
}

// MapRank computes a score's leaderboard position on its beatmap: one plus
// the number of other best-status scores with an equal or greater metric.
// Always recomputed from the live table, never cached.
func (r *Repository) MapRank(ctx context.Context, scoreID int64, mapHash string, metric domain.Metric, value float64) (int64, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM scores
		WHERE map_hash = $1 AND status IN ($2, $3) AND %s >= $4 AND id <> $5
	`, scoreMetricColumn(metric))
	var count int64
	err := r.pool.QueryRow(ctx, query, mapHash, domain.StatusBest, domain.StatusApproved, value, scoreID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("computing map rank: %w", err)
	}
	return count + 1, nil
}

// MapLeaderboardEntry is one row of a per-beatmap leaderboard.
type MapLeaderboardEntry struct {
	Score    domain.Score
	Username string
	EmailMD5 string
}

// TopScoresOnMap returns the beatmap's best-status scores ordered by the
// configured metric descending, with owner info joined in.
func (r *Repository) TopScoresOnMap(ctx context.Context, mapHash string, metric domain.Metric, limit int) ([]MapLeaderboardEntry, error) {
	query := fmt.Sprintf(`
		SELECT s.id, s.player_id, s.map_hash, s.mode, s.score, s.max_combo, s.grade,
		       s.geki, s.n300, s.katu, s.n100, s.n50, s.miss,
		       s.accuracy, s.mods, s.speed, s.fc, s.device_id, s.pp, s.status, s.date,
		       p.username, p.email_md5
		FROM scores s
		JOIN players p ON p.id = s.player_id
		WHERE s.map_hash = $1 AND s.status IN ($2, $3)
		ORDER BY s.%s DESC, s.date ASC
		LIMIT $4
	`, scoreMetricColumn(metric))

	rows, err := r.pool.Query(ctx, query, mapHash, domain.StatusBest, domain.StatusApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("getting map leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []MapLeaderboardEntry
	for rows.Next() {
		var e MapLeaderboardEntry
		s := &e.Score
		err := rows.Scan(
			&s.ID, &s.PlayerID, &s.MapHash, &s.Mode, &s.Score, &s.MaxCombo, &s.Grade,
			&s.Geki, &s.N300, &s.Katu, &s.N100, &s.N50, &s.Miss,
			&s.Accuracy, &s.Mods, &s.Speed, &s.FullCombo, &s.DeviceID, &s.PP, &s.Status, &s.Date,
			&e.Username, &e.EmailMD5,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// BestScoreWindow returns the player's best-status scores ordered by the
// configured metric descending, at most limit entries. Feeds statistics
// aggregation.
func (r *Repository) BestScoreWindow(ctx context.Context, playerID int64, mode domain.GameMode, metric domain.Metric, limit int) ([]rank.ScoreSample, error) {
	query := fmt.Sprintf(`
		SELECT id, pp, score, accuracy FROM scores
		WHERE player_id = $1 AND mode = $2 AND status IN ($3, $4)
		ORDER BY %s DESC
		LIMIT $5
	`, scoreMetricColumn(metric))

	rows, err := r.pool.Query(ctx, query, playerID, mode, domain.StatusBest, domain.StatusApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("getting best score window: %w", err)
	}
	defer rows.Close()

	var samples []rank.ScoreSample
	for rows.Next() {
		var s rank.ScoreSample
		if err := rows.Scan(&s.ID, &s.PP, &s.Score, &s.Accuracy); err != nil {
			return nil, fmt.Errorf("scanning score sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// CountPlayersWithMetricAtLeast counts other players in the mode whose
// statistics metric meets or exceeds the given value. Global rank is that
// count plus one.
func (r *Repository) CountPlayersWithMetricAtLeast(ctx context.Context, mode domain.GameMode, metric domain.Metric, value float64, excludePlayerID int64) (int64, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM statistics
		WHERE mode = $1 AND %s >= $2 AND player_id <> $3
	`, statsMetricColumn(metric))
	var count int64
	err := r.pool.QueryRow(ctx, query, mode, value, excludePlayerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting players: %w", err)
	}
	return count, nil
}

// DeleteScoreRestorePrevious removes a retracted score and, in the same
// transaction, promotes the player's strongest SUBMITTED score on the map
// back to the user-best status, so a rejected replay never leaves the map
// without a best when an older one exists.
func (r *Repository) DeleteScoreRestorePrevious(ctx context.Context, score *domain.Score, metric domain.Metric, restored domain.SubmissionStatus) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `DELETE FROM scores WHERE id = $1`, score.ID)
	if err != nil {
		return fmt.Errorf("deleting score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrScoreNotFound
	}

	promote := fmt.Sprintf(`
		UPDATE scores SET status = $1
		WHERE id = (
			SELECT id FROM scores
			WHERE player_id = $2 AND map_hash = $3 AND status = $4
			ORDER BY %s DESC
			LIMIT 1
		)
	`, scoreMetricColumn(metric))
	if _, err := tx.Exec(ctx, promote, restored, score.PlayerID, score.MapHash, domain.StatusSubmitted); err != nil {
		return fmt.Errorf("restoring previous best: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing score removal: %w", err)
	}
	return nil
}

// UpdateScorePP overwrites a score's performance value
func (r *Repository) UpdateScorePP(ctx context.Context, scoreID int64, pp float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE scores SET pp = $2 WHERE id = $1`, scoreID, pp)
	if err != nil {
		return fmt.Errorf("updating score pp: %w", err)
	}
	return nil
}

// BatchUpdateScorePP rewrites many scores' performance values efficiently
func (r *Repository) BatchUpdateScorePP(ctx context.Context, values map[int64]float64) error {
	if len(values) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for id, pp := range values {
		batch.Queue(`UPDATE scores SET pp = $2 WHERE id = $1`, id, pp)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range values {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch updating score pp: %w", err)
		}
	}
	return nil
}

// BestScores returns every best-status score a player holds, for full
// recalculation.
func (r *Repository) BestScores(ctx context.Context, playerID int64) ([]domain.Score, error) {
	query := `SELECT ` + scoreColumns + ` FROM scores
		WHERE player_id = $1 AND status IN ($2, $3)`
	rows, err := r.pool.Query(ctx, query, playerID, domain.StatusBest, domain.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("getting best scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.Score
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, *score)
	}
	return scores, nil
}

// ListPlayerIDs returns every registered player id
func (r *Repository) ListPlayerIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning player id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AllStatistics returns every statistics row for a mode, for the rankings
// reconciliation worker.
func (r *Repository) AllStatistics(ctx context.Context, mode domain.GameMode) ([]domain.Statistics, error) {
	query := `SELECT player_id, mode, pp, ranked_score, total_score, play_count, accuracy
		FROM statistics WHERE mode = $1`
	rows, err := r.pool.Query(ctx, query, mode)
	if err != nil {
		return nil, fmt.Errorf("getting all statistics: %w", err)
	}
	defer rows.Close()

	var stats []domain.Statistics
	for rows.Next() {
		var s domain.Statistics
		if err := rows.Scan(&s.PlayerID, &s.Mode, &s.PP, &s.RankedScore, &s.TotalScore, &s.PlayCount, &s.Accuracy); err != nil {
			return nil, fmt.Errorf("scanning statistics: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// RecordScoreEvent records a submission lifecycle event for auditing
func (r *Repository) RecordScoreEvent(ctx context.Context, scoreID, playerID int64, mapHash, eventType string) error {
	query := `
		INSERT INTO score_events (score_id, player_id, map_hash, event_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, scoreID, playerID, mapHash, eventType, time.Now())
	if err != nil {
		return fmt.Errorf("recording score event: %w", err)
	}
	return nil
}
