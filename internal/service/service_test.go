package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/osudroid-server/internal/config"
	"github.com/osudroid-server/internal/difficulty"
	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/postgres"
	"github.com/osudroid-server/internal/rank"
	"github.com/osudroid-server/internal/redis"
)

// In-memory fakes for the service dependencies. Behavior mirrors the real
// implementations closely enough for the business-logic tests.

type fakeStore struct {
	players    map[int64]*domain.Player
	statistics map[int64]*domain.Statistics
	scores     map[int64]*domain.Score
	nextScore  int64
	events     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:    make(map[int64]*domain.Player),
		statistics: make(map[int64]*domain.Statistics),
		scores:     make(map[int64]*domain.Score),
	}
}

func (f *fakeStore) addPlayer(p *domain.Player) {
	f.players[p.ID] = p
}

func (f *fakeStore) CreatePlayer(_ context.Context, p *domain.Player) error {
	for _, existing := range f.players {
		if existing.Username == p.Username {
			return domain.ErrUsernameTaken
		}
	}
	p.ID = int64(len(f.players) + 1)
	clone := *p
	f.players[p.ID] = &clone
	return nil
}

func (f *fakeStore) GetPlayer(_ context.Context, id int64) (*domain.Player, error) {
	p, ok := f.players[id]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakeStore) GetPlayerByUsername(_ context.Context, username string) (*domain.Player, error) {
	for _, p := range f.players {
		if p.Username == username {
			clone := *p
			return &clone, nil
		}
	}
	return nil, domain.ErrPlayerNotFound
}

func (f *fakeStore) UpdatePlaying(_ context.Context, playerID int64, hash string) error {
	p, ok := f.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.Playing = hash
	return nil
}

func (f *fakeStore) UpdateSession(_ context.Context, playerID int64, session string) error {
	p, ok := f.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.Session = session
	return nil
}

func (f *fakeStore) AddDeviceID(_ context.Context, playerID int64, deviceID string) error {
	p, ok := f.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	for _, d := range p.DeviceIDs {
		if d == deviceID {
			return nil
		}
	}
	p.DeviceIDs = append(p.DeviceIDs, deviceID)
	return nil
}

func (f *fakeStore) GetStatistics(_ context.Context, playerID int64, mode domain.GameMode) (*domain.Statistics, error) {
	s, ok := f.statistics[playerID]
	if !ok {
		s = domain.NewStatistics(playerID, mode)
		f.statistics[playerID] = s
	}
	clone := *s
	return &clone, nil
}

func (f *fakeStore) SaveStatistics(_ context.Context, s *domain.Statistics) error {
	clone := *s
	f.statistics[s.PlayerID] = &clone
	return nil
}

func (f *fakeStore) GetScore(_ context.Context, id int64) (*domain.Score, error) {
	s, ok := f.scores[id]
	if !ok {
		return nil, domain.ErrScoreNotFound
	}
	clone := *s
	return &clone, nil
}

func (f *fakeStore) GetBestScore(_ context.Context, playerID int64, mapHash string) (*domain.Score, error) {
	for _, s := range f.scores {
		if s.PlayerID == playerID && s.MapHash == mapHash && s.Status.IsUserBest() {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertScore(_ context.Context, s *domain.Score) error {
	f.nextScore++
	s.ID = f.nextScore
	clone := *s
	f.scores[s.ID] = &clone
	return nil
}

func (f *fakeStore) SubmitBest(ctx context.Context, s *domain.Score, stats *domain.Statistics) error {
	for _, existing := range f.scores {
		if existing.PlayerID == s.PlayerID && existing.MapHash == s.MapHash && existing.Status.IsUserBest() {
			existing.Status = domain.StatusSubmitted
		}
	}
	if err := f.InsertScore(ctx, s); err != nil {
		return err
	}
	return f.SaveStatistics(ctx, stats)
}

func (f *fakeStore) MapRank(_ context.Context, scoreID int64, mapHash string, metric domain.Metric, value float64) (int64, error) {
	var count int64
	for _, s := range f.scores {
		if s.MapHash == mapHash && s.Status.IsUserBest() && s.ID != scoreID && s.MetricValue(metric) >= value {
			count++
		}
	}
	return count + 1, nil
}

func (f *fakeStore) TopScoresOnMap(_ context.Context, mapHash string, metric domain.Metric, limit int) ([]postgres.MapLeaderboardEntry, error) {
	var entries []postgres.MapLeaderboardEntry
	for _, s := range f.scores {
		if s.MapHash == mapHash && s.Status.IsUserBest() {
			entry := postgres.MapLeaderboardEntry{Score: *s}
			if p, ok := f.players[s.PlayerID]; ok {
				entry.Username = p.Username
				entry.EmailMD5 = p.EmailMD5
			}
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Score.MetricValue(metric) > entries[j].Score.MetricValue(metric)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeStore) BestScoreWindow(_ context.Context, playerID int64, mode domain.GameMode, metric domain.Metric, limit int) ([]rank.ScoreSample, error) {
	var samples []rank.ScoreSample
	for _, s := range f.scores {
		if s.PlayerID == playerID && s.Mode == mode && s.Status.IsUserBest() {
			samples = append(samples, rank.ScoreSample{ID: s.ID, PP: s.PP, Score: s.Score, Accuracy: s.Accuracy})
		}
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].MetricValue(metric) > samples[j].MetricValue(metric)
	})
	if len(samples) > limit {
		samples = samples[:limit]
	}
	return samples, nil
}

func (f *fakeStore) CountPlayersWithMetricAtLeast(_ context.Context, _ domain.GameMode, metric domain.Metric, value float64, excludePlayerID int64) (int64, error) {
	var count int64
	for id, s := range f.statistics {
		if id != excludePlayerID && s.MetricValue(metric) >= value {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) DeleteScoreRestorePrevious(_ context.Context, score *domain.Score, metric domain.Metric, restored domain.SubmissionStatus) error {
	if _, ok := f.scores[score.ID]; !ok {
		return domain.ErrScoreNotFound
	}
	delete(f.scores, score.ID)

	var best *domain.Score
	for _, s := range f.scores {
		if s.PlayerID == score.PlayerID && s.MapHash == score.MapHash && s.Status == domain.StatusSubmitted {
			if best == nil || s.MetricValue(metric) > best.MetricValue(metric) {
				best = s
			}
		}
	}
	if best != nil {
		best.Status = restored
	}
	return nil
}

func (f *fakeStore) UpdateScorePP(_ context.Context, scoreID int64, pp float64) error {
	s, ok := f.scores[scoreID]
	if !ok {
		return domain.ErrScoreNotFound
	}
	s.PP = pp
	return nil
}

func (f *fakeStore) BatchUpdateScorePP(ctx context.Context, values map[int64]float64) error {
	for id, pp := range values {
		if err := f.UpdateScorePP(ctx, id, pp); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) BestScores(_ context.Context, playerID int64) ([]domain.Score, error) {
	var scores []domain.Score
	for _, s := range f.scores {
		if s.PlayerID == playerID && s.Status.IsUserBest() {
			scores = append(scores, *s)
		}
	}
	return scores, nil
}

func (f *fakeStore) RecordScoreEvent(_ context.Context, scoreID, _ int64, _ string, eventType string) error {
	f.events = append(f.events, fmt.Sprintf("%s:%d", eventType, scoreID))
	return nil
}

type fakeRankings struct {
	metrics map[int64]float64
}

func newFakeRankings() *fakeRankings {
	return &fakeRankings{metrics: make(map[int64]float64)}
}

func (f *fakeRankings) SetPlayerMetric(_ context.Context, _ domain.GameMode, playerID int64, value float64) error {
	f.metrics[playerID] = value
	return nil
}

func (f *fakeRankings) GlobalRank(_ context.Context, _ domain.GameMode, playerID int64, value float64) (int64, error) {
	var count int64
	for id, v := range f.metrics {
		if id != playerID && v >= value {
			count++
		}
	}
	return count + 1, nil
}

func (f *fakeRankings) TopPlayers(_ context.Context, _ domain.GameMode, offset, limit int64) ([]redis.RankedPlayer, error) {
	ranked := make([]redis.RankedPlayer, 0, len(f.metrics))
	for id, v := range f.metrics {
		ranked = append(ranked, redis.RankedPlayer{PlayerID: id, Value: v})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Value > ranked[j].Value })
	for i := range ranked {
		ranked[i].Rank = int64(i) + 1
	}
	if offset >= int64(len(ranked)) {
		return nil, nil
	}
	ranked = ranked[offset:]
	if int64(len(ranked)) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (f *fakeRankings) CountPlayers(_ context.Context, _ domain.GameMode) (int64, error) {
	return int64(len(f.metrics)), nil
}

type fakeBeatmaps struct {
	maps map[string]*domain.Beatmap
}

func (f *fakeBeatmaps) Lookup(_ context.Context, hash string) (*domain.Beatmap, error) {
	bm, ok := f.maps[hash]
	if !ok {
		return nil, domain.ErrBeatmapNotFound
	}
	return bm, nil
}

type fakeEngine struct {
	pp          float64
	stars       float64
	perfErr     error
	analysis    *domain.ReplayAnalysis
	analysisErr error
	perfCalls   []difficulty.PerformanceRequest
}

func (f *fakeEngine) ComputeDifficulty(_ context.Context, _, _ string, _ float64) (*domain.DifficultyAttributes, error) {
	return &domain.DifficultyAttributes{Stars: f.stars}, nil
}

func (f *fakeEngine) ComputePerformance(_ context.Context, req difficulty.PerformanceRequest) (*domain.Performance, error) {
	f.perfCalls = append(f.perfCalls, req)
	if f.perfErr != nil {
		return nil, f.perfErr
	}
	return &domain.Performance{Total: f.pp}, nil
}

func (f *fakeEngine) AnalyzeReplay(_ context.Context, _ []byte) (*domain.ReplayAnalysis, error) {
	if f.analysisErr != nil {
		return nil, f.analysisErr
	}
	return f.analysis, nil
}

type fakeReplayFiles struct {
	files map[int64][]byte
}

func newFakeReplayFiles() *fakeReplayFiles {
	return &fakeReplayFiles{files: make(map[int64][]byte)}
}

func (f *fakeReplayFiles) Put(scoreID int64, data []byte) error {
	f.files[scoreID] = data
	return nil
}

func (f *fakeReplayFiles) Get(scoreID int64) ([]byte, error) {
	data, ok := f.files[scoreID]
	if !ok {
		return nil, domain.ErrScoreNotFound
	}
	return data, nil
}

func (f *fakeReplayFiles) Exists(scoreID int64) (bool, error) {
	_, ok := f.files[scoreID]
	return ok, nil
}

func (f *fakeReplayFiles) Remove(scoreID int64) error {
	delete(f.files, scoreID)
	return nil
}

type testEnv struct {
	svc      *Service
	store    *fakeStore
	rankings *fakeRankings
	beatmaps *fakeBeatmaps
	engine   *fakeEngine
	replays  *fakeReplayFiles
	cfg      *config.Config
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newFakeStore(),
		rankings: newFakeRankings(),
		beatmaps: &fakeBeatmaps{maps: make(map[string]*domain.Beatmap)},
		engine:   &fakeEngine{pp: 100},
		replays:  newFakeReplayFiles(),
		cfg:      config.DefaultConfig(),
	}
	env.svc = NewService(env.store, env.rankings, env.beatmaps, env.engine, env.replays, nil, nil, env.cfg, slog.Default())
	return env
}
