// Package handler exposes the HTTP surface: the legacy form-encoded
// endpoints the game client speaks, and a small JSON API for the web
// frontend. The legacy protocol answers with two lines of plain text,
// "SUCCESS" or "FAIL" followed by space-joined fields.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/service"
	"github.com/osudroid-server/internal/websocket"
)

// maxReplayUpload caps the multipart body on the replay endpoint.
const maxReplayUpload = 10 << 20

// Handler provides HTTP handlers for the score server API
type Handler struct {
	service *service.Service
	hub     *websocket.Hub
	metric  domain.Metric
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.Service, hub *websocket.Hub, metric domain.Metric, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		metric:  metric,
		logger:  logger,
	}
}

// APIResponse represents a standard JSON API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		// Legacy client endpoints, form-encoded
		r.Post("/login.php", h.LoginDroid)
		r.Post("/register.php", h.RegisterDroid)
		r.Post("/submit.php", h.SubmitDroid)
		r.Post("/upload.php", h.UploadReplay)
		r.Post("/getrank.php", h.MapLeaderboardDroid)
		r.Post("/gettop.php", h.ScoreDetailDroid)

		// JSON endpoints
		r.Get("/get_user", h.GetUser)
		r.Get("/beatmap", h.GetBeatmap)
		r.Get("/leaderboard", h.GlobalLeaderboard)
		r.Get("/profile/{playerID}", h.GetProfile)
		r.Get("/replay/{scoreID}", h.DownloadReplay)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// droidSuccess writes the two-line success response the game client parses.
func droidSuccess(w http.ResponseWriter, fields ...string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "SUCCESS\n%s", strings.Join(fields, " "))
}

// droidLines writes a success response whose payload is one line per entry.
func droidLines(w http.ResponseWriter, lines []string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "SUCCESS\n%s", strings.Join(lines, "\n"))
}

// droidFail writes the two-line failure response. Unexpected errors are
// logged and masked; anything the client caused is reported verbatim.
func (h *Handler) droidFail(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !clientFacing(err) {
		h.logger.Error("request failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "FAIL\n%s", domain.ErrInternalError.Error())
		return
	}
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, "FAIL\n%s", err.Error())
}

// clientFacing reports whether an error message is safe to send to the
// client as-is.
func clientFacing(err error) bool {
	if domain.IsNotFoundError(err) || domain.IsIntegrityError(err) {
		return true
	}
	for _, target := range []error{
		domain.ErrInvalidRequest,
		domain.ErrSessionMismatch,
		domain.ErrUsernameTaken,
		domain.ErrWrongPassword,
		domain.ErrBeatmapNotSubmittable,
		domain.ErrMalformedReplay,
		domain.ErrInvalidNumericField,
		domain.ErrUnrankedMods,
		domain.ErrIncompatibleMods,
		domain.ErrSubmissionTimedOut,
		domain.ErrNotBestScore,
		domain.ErrAlreadyUploaded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// LoginDroid authenticates a player and returns the fresh session token
// together with the player's current standing.
func (h *Handler) LoginDroid(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		h.droidFail(w, domain.ErrInvalidRequest)
		return
	}

	result, err := h.service.Login(r.Context(), username, password, r.PostFormValue("deviceID"))
	if err != nil {
		h.droidFail(w, err)
		return
	}

	droidSuccess(w,
		strconv.FormatInt(result.Player.ID, 10),
		result.Session,
		strconv.FormatInt(result.GlobalRank, 10),
		strconv.FormatInt(result.Metric, 10),
		strconv.FormatInt(result.DroidAccuracy, 10),
		result.Player.Username,
		result.Player.EmailMD5,
	)
}

// RegisterDroid creates a new account.
func (h *Handler) RegisterDroid(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	email := r.PostFormValue("email")
	if username == "" || password == "" || email == "" {
		h.droidFail(w, domain.ErrInvalidRequest)
		return
	}

	if _, err := h.service.Register(r.Context(), username, password, email, r.PostFormValue("deviceID")); err != nil {
		h.droidFail(w, err)
		return
	}

	droidSuccess(w, "Account created.")
}

// SubmitDroid serves both halves of the submission protocol: a ping that
// records which beatmap the player started, and the actual score
// submission carried in the data field.
func (h *Handler) SubmitDroid(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(r.PostFormValue("userID"), 10, 64)
	if err != nil {
		h.droidFail(w, domain.ErrInvalidRequest)
		return
	}

	ssid := r.PostFormValue("ssid")
	hash := r.PostFormValue("hash")
	data := r.PostFormValue("data")

	switch {
	case data != "":
		h.submitScore(w, r, playerID, ssid, data)
	case hash != "" && ssid != "":
		h.submitPing(w, r, playerID, ssid, hash)
	default:
		h.droidFail(w, domain.ErrInvalidRequest)
	}
}

func (h *Handler) submitPing(w http.ResponseWriter, r *http.Request, playerID int64, ssid, hash string) {
	player, err := h.service.Ping(r.Context(), playerID, ssid, hash)
	if err != nil {
		h.droidFail(w, err)
		return
	}
	droidSuccess(w, "1", strconv.FormatInt(player.ID, 10))
}

func (h *Handler) submitScore(w http.ResponseWriter, r *http.Request, playerID int64, ssid, data string) {
	result, err := h.service.Submit(r.Context(), playerID, ssid, data)
	if err != nil {
		h.droidFail(w, err)
		return
	}

	fields := []string{
		strconv.FormatInt(result.GlobalRank, 10),
		strconv.FormatInt(result.Metric, 10),
		strconv.FormatInt(result.DroidAccuracy, 10),
		strconv.FormatInt(result.MapRank, 10),
	}
	// The score id tells the client to upload the replay.
	if result.Status.IsUserBest() && result.ScoreID > 0 {
		fields = append(fields, strconv.FormatInt(result.ScoreID, 10))
	}
	droidSuccess(w, fields...)
}

// UploadReplay receives the raw replay file for a previously submitted
// best score and runs it through the integrity gates.
func (h *Handler) UploadReplay(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxReplayUpload); err != nil {
		h.droidFail(w, domain.ErrInvalidRequest)
		return
	}

	scoreID, err := strconv.ParseInt(r.PostFormValue("replayID"), 10, 64)
	if err != nil {
		h.droidFail(w, domain.ErrInvalidRequest)
		return
	}

	file, _, err := r.FormFile("uploadedFile")
	if err != nil {
		h.droidFail(w, domain.ErrInvalidRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxReplayUpload))
	if err != nil || len(data) == 0 {
		h.droidFail(w, domain.ErrMalformedReplay)
		return
	}

	if err := h.service.VerifyReplay(r.Context(), scoreID, data); err != nil {
		h.droidFail(w, err)
		return
	}

	droidSuccess(w, "Replay uploaded.")
}

// MapLeaderboardDroid returns the top best scores on a beatmap, one score
// per line.
func (h *Handler) MapLeaderboardDroid(w http.ResponseWriter, r *http.Request) {
	hash := r.PostFormValue("hash")
	if hash == "" {
		h.droidFail(w, domain.ErrInvalidRequest)
		return
	}

	entries, err := h.service.MapLeaderboard(r.Context(), hash)
	if err != nil {
		h.droidFail(w, err)
		return
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, strings.Join([]string{
			strconv.FormatInt(e.Score.ID, 10),
			e.Username,
			strconv.FormatInt(roundedMetric(&e.Score, h.metric), 10),
			strconv.Itoa(e.Score.MaxCombo),
			strconv.FormatInt(e.Score.Rank, 10),
			e.Score.Mods,
			strconv.FormatInt(e.Score.DroidAccuracy(), 10),
			e.EmailMD5,
		}, " "))
	}
	droidLines(w, lines)
}

// ScoreDetailDroid returns one score's full breakdown.
func (h *Handler) ScoreDetailDroid(w http.ResponseWriter, r *http.Request) {
	scoreID, err := strconv.ParseInt(r.PostFormValue("playID"), 10, 64)
	if err != nil {
		h.droidFail(w, domain.ErrInvalidRequest)
		return
	}

	score, err := h.service.ScoreDetail(r.Context(), scoreID)
	if err != nil {
		h.droidFail(w, err)
		return
	}

	droidSuccess(w,
		score.Mods,
		strconv.FormatInt(roundedMetric(score, h.metric), 10),
		strconv.Itoa(score.MaxCombo),
		strconv.FormatInt(score.Rank, 10),
		strconv.Itoa(score.Geki),
		strconv.Itoa(score.N300),
		strconv.Itoa(score.Katu),
		strconv.Itoa(score.N100),
		strconv.Itoa(score.Miss),
		strconv.Itoa(score.N50),
		strconv.FormatInt(score.DroidAccuracy(), 10),
	)
}

func roundedMetric(score *domain.Score, metric domain.Metric) int64 {
	v := score.MetricValue(metric)
	if v < 0 {
		return 0
	}
	return int64(v + 0.5)
}

// GetUser returns a player's public identity.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), id)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get user", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"id":        profile.Player.ID,
		"username":  profile.Player.Username,
		"last_seen": profile.Player.LastSeen,
	})
}

// GetProfile returns a player's full profile with standing and best scores.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(chi.URLParam(r, "playerID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), playerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get profile", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, profile)
}

// GetBeatmap returns beatmap metadata and its star rating for the given
// mods and speed.
func (h *Handler) GetBeatmap(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get("hash")
	if hash == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	mods := r.URL.Query().Get("mods")
	if mods == "" {
		mods = "-"
	}
	speed := 1.0
	if s := r.URL.Query().Get("speed"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
			speed = v
		}
	}

	info, err := h.service.BeatmapInfo(r.Context(), hash, mods, speed)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get beatmap", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, info)
}

// GlobalLeaderboard returns a page of the global rankings.
func (h *Handler) GlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	var offset, limit int64
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v >= 0 {
			offset = v
		}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
			limit = v
		}
	}

	entries, err := h.service.GlobalTop(r.Context(), offset, limit)
	if err != nil {
		h.logger.Error("failed to get global leaderboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}

// DownloadReplay streams a stored replay file.
func (h *Handler) DownloadReplay(w http.ResponseWriter, r *http.Request) {
	scoreID, err := strconv.ParseInt(chi.URLParam(r, "scoreID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	data, err := h.service.Replay(r.Context(), scoreID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to load replay", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%d.odr", scoreID))
	w.Write(data)
}
