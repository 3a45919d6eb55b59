package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/osudroid-server/internal/domain"
)

func seedBest(env *testEnv, playerID int64, pp float64, score int64) *domain.Score {
	s := &domain.Score{
		PlayerID: playerID,
		MapHash:  testMapHash,
		Score:    score,
		MaxCombo: 300,
		Mods:     "-",
		Speed:    1.0,
		PP:       pp,
		Accuracy: 98,
		Status:   domain.StatusBest,
	}
	if err := env.store.InsertScore(context.Background(), s); err != nil {
		panic(err)
	}
	return s
}

func TestMapLeaderboardOrdersByMetric(t *testing.T) {
	env := newTestEnv()
	env.store.addPlayer(&domain.Player{ID: 1, Username: "peppy", EmailMD5: "aaaa"})
	env.store.addPlayer(&domain.Player{ID: 2, Username: "rrtyui", EmailMD5: "bbbb"})
	seedBest(env, 1, 100, 100000)
	seedBest(env, 2, 250, 150000)

	entries, err := env.svc.MapLeaderboard(context.Background(), testMapHash)
	if err != nil {
		t.Fatalf("MapLeaderboard: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	if entries[0].Username != "rrtyui" || entries[1].Username != "peppy" {
		t.Errorf("order: got %q, %q", entries[0].Username, entries[1].Username)
	}
	if entries[0].Score.Rank != 1 || entries[1].Score.Rank != 2 {
		t.Errorf("ranks: got %d, %d", entries[0].Score.Rank, entries[1].Score.Rank)
	}
	if entries[0].EmailMD5 != "bbbb" {
		t.Errorf("email md5: got %q", entries[0].EmailMD5)
	}
}

func TestScoreDetailComputesMapRank(t *testing.T) {
	env := newTestEnv()
	seedBest(env, 1, 250, 150000)
	second := seedBest(env, 2, 100, 100000)

	score, err := env.svc.ScoreDetail(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("ScoreDetail: %v", err)
	}
	if score.Rank != 2 {
		t.Errorf("map rank: got %d, want 2", score.Rank)
	}
}

func TestScoreDetailUnknownScore(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.ScoreDetail(context.Background(), 42)
	if !errors.Is(err, domain.ErrScoreNotFound) {
		t.Errorf("got %v, want ErrScoreNotFound", err)
	}
}

func TestGlobalTopEnrichesEntries(t *testing.T) {
	env := newTestEnv()
	env.store.addPlayer(&domain.Player{ID: 1, Username: "peppy"})
	env.store.addPlayer(&domain.Player{ID: 2, Username: "rrtyui"})
	env.store.statistics[1] = &domain.Statistics{PlayerID: 1, PP: 100, Accuracy: 97, PlayCount: 10}
	env.store.statistics[2] = &domain.Statistics{PlayerID: 2, PP: 250, Accuracy: 99, PlayCount: 20}
	env.rankings.metrics[1] = 100
	env.rankings.metrics[2] = 250

	entries, err := env.svc.GlobalTop(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("GlobalTop: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	if entries[0].Username != "rrtyui" || entries[0].Rank != 1 {
		t.Errorf("first entry: %+v", entries[0])
	}
	if entries[0].Accuracy != 99 || entries[0].PlayCount != 20 {
		t.Errorf("first entry not enriched: %+v", entries[0])
	}
	if entries[1].Username != "peppy" || entries[1].Rank != 2 {
		t.Errorf("second entry: %+v", entries[1])
	}
}

func TestGlobalTopClampsLimit(t *testing.T) {
	env := newTestEnv()
	env.store.addPlayer(&domain.Player{ID: 1, Username: "peppy"})
	env.rankings.metrics[1] = 100

	// A limit beyond the configured maximum falls back to the page size.
	entries, err := env.svc.GlobalTop(context.Background(), 0, 10000)
	if err != nil {
		t.Fatalf("GlobalTop: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries: got %d, want 1", len(entries))
	}
}

func TestBeatmapInfoIncludesDifficulty(t *testing.T) {
	env := newTestEnv()
	seedBeatmap(env, domain.ApprovalRanked)
	env.engine.stars = 5.5

	info, err := env.svc.BeatmapInfo(context.Background(), testMapHash, "-", 1.0)
	if err != nil {
		t.Fatalf("BeatmapInfo: %v", err)
	}
	if info.Beatmap.Title != "test map" {
		t.Errorf("title: got %q", info.Beatmap.Title)
	}
	if info.Difficulty == nil || info.Difficulty.Stars != 5.5 {
		t.Errorf("difficulty: %+v", info.Difficulty)
	}
}

func TestBeatmapInfoUnknownMap(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.BeatmapInfo(context.Background(), "missing", "-", 1.0)
	if !errors.Is(err, domain.ErrBeatmapNotFound) {
		t.Errorf("got %v, want ErrBeatmapNotFound", err)
	}
}

func TestReplayDownload(t *testing.T) {
	env := newTestEnv()
	score := seedBest(env, 1, 100, 100000)
	env.replays.files[score.ID] = []byte("odr-bytes")

	data, err := env.svc.Replay(context.Background(), score.ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !bytes.Equal(data, []byte("odr-bytes")) {
		t.Errorf("replay bytes: got %q", data)
	}

	if _, err := env.svc.Replay(context.Background(), 999); !errors.Is(err, domain.ErrScoreNotFound) {
		t.Errorf("got %v, want ErrScoreNotFound", err)
	}
}
