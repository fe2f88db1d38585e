package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/iamasit07/guess-master/backend/internal/service/game"
	"github.com/iamasit07/guess-master/backend/internal/transport/http/middleware"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

// GameService is the session state machine as seen by the HTTP layer.
type GameService interface {
	Create(ctx context.Context, code string, creator domain.PlayerID) (*game.Snapshot, error)
	Join(ctx context.Context, code string, user domain.PlayerID) (*game.Snapshot, error)
	Start(ctx context.Context, code string, caller domain.PlayerID, question, answer string) (*game.Snapshot, error)
	SubmitGuess(ctx context.Context, code string, user domain.PlayerID, guess string) (*game.GuessResult, error)
	Leave(ctx context.Context, code string, requester, target domain.PlayerID) (*game.LeaveResult, error)
	Get(ctx context.Context, code string, viewer domain.PlayerID) (*game.SessionDetail, error)
	Exists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context) ([]game.SessionSummary, error)
	Dashboard(ctx context.Context, user domain.PlayerID) (*game.Dashboard, error)
}

type GameHandler struct {
	Games       GameService
	FrontendURL string
}

func NewGameHandler(games GameService, frontendURL string) *GameHandler {
	return &GameHandler{Games: games, FrontendURL: strings.TrimRight(frontendURL, "/")}
}

type codeRequest struct {
	Code string `json:"code"`
}

type startRequest struct {
	Code     string `json:"code"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type guessRequest struct {
	Code  string `json:"code"`
	Guess string `json:"guess"`
}

type leaveRequest struct {
	Code   string          `json:"code"`
	UserID json.RawMessage `json:"userId"`
}

// bindJSON decodes the request body into dst. An empty body leaves dst zeroed
// so the service reports the missing fields itself.
func bindJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "Invalid request body")
		return false
	}
	return true
}

// playerRef accepts a user id sent either as a JSON string or a number
func playerRef(raw json.RawMessage) domain.PlayerID {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return domain.ToPlayerID(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return domain.ToPlayerID(n.String())
	}
	return domain.ToPlayerID(string(raw))
}

func (h *GameHandler) Create(c *gin.Context) {
	var req codeRequest
	if !bindJSON(c, &req) {
		return
	}

	snap, err := h.Games.Create(c.Request.Context(), req.Code, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *GameHandler) Join(c *gin.Context) {
	var req codeRequest
	if !bindJSON(c, &req) {
		return
	}

	snap, err := h.Games.Join(c.Request.Context(), req.Code, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *GameHandler) Start(c *gin.Context) {
	var req startRequest
	if !bindJSON(c, &req) {
		return
	}

	snap, err := h.Games.Start(c.Request.Context(), req.Code, middleware.UserID(c), req.Question, req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Game started", "session": snap})
}

func (h *GameHandler) Guess(c *gin.Context) {
	var req guessRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.Games.SubmitGuess(c.Request.Context(), req.Code, middleware.UserID(c), req.Guess)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Correct {
		c.JSON(http.StatusOK, gin.H{
			"message": "Correct! You win!",
			"winner":  result.Winner,
			"session": result.Session,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Wrong guess", "attemptsLeft": result.AttemptsLeft})
}

func (h *GameHandler) Leave(c *gin.Context) {
	var req leaveRequest
	if !bindJSON(c, &req) {
		return
	}

	caller := middleware.UserID(c)
	result, err := h.Games.Leave(c.Request.Context(), req.Code, caller, playerRef(req.UserID))
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Deleted {
		c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left session", "session": result.Session})
}

func (h *GameHandler) Get(c *gin.Context) {
	detail, err := h.Games.Get(c.Request.Context(), c.Param("code"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// List returns every live session without round secrets
func (h *GameHandler) List(c *gin.Context) {
	sessions, err := h.Games.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if sessions == nil {
		sessions = []game.SessionSummary{}
	}
	c.JSON(http.StatusOK, sessions)
}

// QR renders the join link of a session as a PNG
func (h *GameHandler) QR(c *gin.Context) {
	code := domain.NormalizeCode(c.Param("code"))
	exists, err := h.Games.Exists(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}
	if !exists {
		respondError(c, domain.ErrSessionNotFound)
		return
	}

	link := fmt.Sprintf("%s/game/%s", h.FrontendURL, code)
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		log.Error().Err(err).Str("component", "http").Str("code", code).Msg("qr encode failed")
		respondError(c, fmt.Errorf("failed to encode qr code: %w", err))
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

// Dashboard reports stats for the caller. The path user is only used without a caller.
func (h *GameHandler) Dashboard(c *gin.Context) {
	user := middleware.UserID(c)
	if user.IsZero() {
		user = domain.ToPlayerID(c.Param("userId"))
	}

	dash, err := h.Games.Dashboard(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
