package redis

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/osudroid-server/internal/domain"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewClientFromRedis(rdb, slog.Default())
}

func TestGlobalRankCounting(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	for id, pp := range map[int64]float64{1: 500, 2: 300, 3: 100} {
		if err := c.SetPlayerMetric(ctx, domain.ModeStandard, id, pp); err != nil {
			t.Fatalf("SetPlayerMetric: %v", err)
		}
	}

	cases := []struct {
		playerID int64
		value    float64
		want     int64
	}{
		{1, 500, 1},
		{2, 300, 2},
		{3, 100, 3},
	}
	for _, tc := range cases {
		got, err := c.GlobalRank(ctx, domain.ModeStandard, tc.playerID, tc.value)
		if err != nil {
			t.Fatalf("GlobalRank(%d): %v", tc.playerID, err)
		}
		if got != tc.want {
			t.Errorf("GlobalRank(%d): got %d, want %d", tc.playerID, got, tc.want)
		}
	}
}

func TestGlobalRankUnrankedPlayer(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	if err := c.SetPlayerMetric(ctx, domain.ModeStandard, 1, 500); err != nil {
		t.Fatalf("SetPlayerMetric: %v", err)
	}

	// Player 9 is not in the set yet; their prospective value still ranks
	// below player 1.
	got, err := c.GlobalRank(ctx, domain.ModeStandard, 9, 200)
	if err != nil {
		t.Fatalf("GlobalRank: %v", err)
	}
	if got != 2 {
		t.Errorf("GlobalRank: got %d, want 2", got)
	}
}

func TestGlobalRankTies(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	for id := int64(1); id <= 3; id++ {
		if err := c.SetPlayerMetric(ctx, domain.ModeStandard, id, 250); err != nil {
			t.Fatalf("SetPlayerMetric: %v", err)
		}
	}

	got, err := c.GlobalRank(ctx, domain.ModeStandard, 2, 250)
	if err != nil {
		t.Fatalf("GlobalRank: %v", err)
	}
	if got != 3 {
		t.Errorf("tied players share the lowest position: got %d, want 3", got)
	}
}

func TestTopPlayersPagination(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	for id := int64(1); id <= 5; id++ {
		if err := c.SetPlayerMetric(ctx, domain.ModeStandard, id, float64(id*100)); err != nil {
			t.Fatalf("SetPlayerMetric: %v", err)
		}
	}

	page, err := c.TopPlayers(ctx, domain.ModeStandard, 1, 2)
	if err != nil {
		t.Fatalf("TopPlayers: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size: got %d, want 2", len(page))
	}
	if page[0].PlayerID != 4 || page[0].Rank != 2 {
		t.Errorf("first entry: got %+v, want player 4 at rank 2", page[0])
	}
	if page[1].PlayerID != 3 || page[1].Rank != 3 {
		t.Errorf("second entry: got %+v, want player 3 at rank 3", page[1])
	}
}

func TestReplaceRankings(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	if err := c.SetPlayerMetric(ctx, domain.ModeStandard, 99, 9999); err != nil {
		t.Fatalf("SetPlayerMetric: %v", err)
	}

	stats := []domain.Statistics{
		{PlayerID: 1, Mode: domain.ModeStandard, PP: 400},
		{PlayerID: 2, Mode: domain.ModeStandard, PP: 200},
	}
	if err := c.ReplaceRankings(ctx, domain.ModeStandard, domain.MetricPP, stats); err != nil {
		t.Fatalf("ReplaceRankings: %v", err)
	}

	count, err := c.CountPlayers(ctx, domain.ModeStandard)
	if err != nil {
		t.Fatalf("CountPlayers: %v", err)
	}
	if count != 2 {
		t.Errorf("stale entries must not survive a rebuild: got %d players", count)
	}

	got, err := c.GlobalRank(ctx, domain.ModeStandard, 2, 200)
	if err != nil {
		t.Fatalf("GlobalRank: %v", err)
	}
	if got != 2 {
		t.Errorf("GlobalRank after rebuild: got %d, want 2", got)
	}
}

func TestRemovePlayer(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	if err := c.SetPlayerMetric(ctx, domain.ModeStandard, 1, 100); err != nil {
		t.Fatalf("SetPlayerMetric: %v", err)
	}
	if err := c.RemovePlayer(ctx, domain.ModeStandard, 1); err != nil {
		t.Fatalf("RemovePlayer: %v", err)
	}

	count, err := c.CountPlayers(ctx, domain.ModeStandard)
	if err != nil {
		t.Fatalf("CountPlayers: %v", err)
	}
	if count != 0 {
		t.Errorf("player still ranked after removal")
	}
}

func TestBeatmapCacheNegativeEntry(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	bm, found, err := c.GetBeatmap(ctx, "deadbeef")
	if err != nil || found || bm != nil {
		t.Fatalf("cold cache: got (%v, %v, %v)", bm, found, err)
	}

	if err := c.SetBeatmapMissing(ctx, "deadbeef", 0); err != nil {
		t.Fatalf("SetBeatmapMissing: %v", err)
	}
	bm, found, err = c.GetBeatmap(ctx, "deadbeef")
	if err != nil {
		t.Fatalf("GetBeatmap: %v", err)
	}
	if !found || bm != nil {
		t.Errorf("cached miss must report found with a nil beatmap: (%v, %v)", bm, found)
	}
}

func TestBeatmapCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	in := &domain.Beatmap{
		Hash:     "cafebabe",
		Title:    "test map",
		Approval: domain.ApprovalRanked,
		MaxCombo: 742,
		OD:       9, HP: 6, CS: 4,
	}
	if err := c.SetBeatmap(ctx, in, 0); err != nil {
		t.Fatalf("SetBeatmap: %v", err)
	}

	out, found, err := c.GetBeatmap(ctx, "cafebabe")
	if err != nil || !found {
		t.Fatalf("GetBeatmap: (%v, %v)", found, err)
	}
	if out.Title != in.Title || out.MaxCombo != in.MaxCombo || out.Approval != in.Approval {
		t.Errorf("cached beatmap mangled: got %+v", out)
	}
}
