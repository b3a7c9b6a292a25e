package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/chesslive/coordinator/internal/coordinator"
	"github.com/chesslive/coordinator/internal/domain"
	"github.com/chesslive/coordinator/internal/msgcat"
	"github.com/chesslive/coordinator/internal/registry"
	"github.com/chesslive/coordinator/internal/rules"
	"github.com/chesslive/coordinator/internal/store"
)

type noopNotifier struct{}

func (noopNotifier) Notify(g *domain.Game, kind domain.EventKind) {}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	st := store.NewRedis(rdb)
	coord := coordinator.New(st, st, noopNotifier{}, registry.New(), rules.NewEngine(), cat)
	return NewServer(coord, 30*time.Second).Router()
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("%s %s: invalid response body %q", method, path, w.Body.String())
	}
	return w, decoded
}

func TestCreateAndGetGame(t *testing.T) {
	r := newTestRouter(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/games", "")
	if w.Code != http.StatusCreated || body["success"] != true {
		t.Fatalf("create: code=%d body=%v", w.Code, body)
	}
	game := body["game"].(map[string]any)
	id, _ := game["gameId"].(string)
	if id == "" {
		t.Fatalf("missing gameId in %v", game)
	}
	if game["status"] != string(domain.StatusWaitingForOpponent) {
		t.Fatalf("unexpected status: %v", game["status"])
	}
	if game["fen"] != domain.StartingFEN {
		t.Fatalf("unexpected fen: %v", game["fen"])
	}

	w, body = doJSON(t, r, http.MethodGet, "/api/games/"+id, "")
	if w.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("get: code=%d body=%v", w.Code, body)
	}
}

func TestGetUnknownGameIs404(t *testing.T) {
	r := newTestRouter(t)
	w, body := doJSON(t, r, http.MethodGet, "/api/games/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body["success"] != false || body["error"] != "Game not found" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestListGames(t *testing.T) {
	r := newTestRouter(t)

	w, body := doJSON(t, r, http.MethodGet, "/api/games", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: code=%d", w.Code)
	}
	games, ok := body["games"].([]any)
	if !ok || len(games) != 0 {
		t.Fatalf("expected empty array, got %v", body["games"])
	}

	doJSON(t, r, http.MethodPost, "/api/games", "")
	_, body = doJSON(t, r, http.MethodGet, "/api/games", "")
	if games := body["games"].([]any); len(games) != 1 {
		t.Fatalf("expected 1 game, got %d", len(games))
	}
}

func TestMakeMoveValidation(t *testing.T) {
	r := newTestRouter(t)

	_, body := doJSON(t, r, http.MethodPost, "/api/games", "")
	id := body["game"].(map[string]any)["gameId"].(string)

	// Move before an opponent joined.
	w, body := doJSON(t, r, http.MethodPost, "/api/games/"+id+"/move", `{"move":"e2e4","playerColor":"white"}`)
	if w.Code != http.StatusBadRequest || body["error"] != "Game has not started yet" {
		t.Fatalf("premature move: code=%d body=%v", w.Code, body)
	}

	// Malformed body.
	w, _ = doJSON(t, r, http.MethodPost, "/api/games/"+id+"/move", `{"move":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}

	// Unknown game.
	w, _ = doJSON(t, r, http.MethodPost, "/api/games/nope/move", `{"move":"e2e4","playerColor":"white"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown game, got %d", w.Code)
	}
}

func TestRegisterWebhook(t *testing.T) {
	r := newTestRouter(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/webhooks", `{"url":"http://example.com/hook"}`)
	if w.Code != http.StatusCreated || body["success"] != true {
		t.Fatalf("register: code=%d body=%v", w.Code, body)
	}
	hook := body["webhook"].(map[string]any)
	if hook["id"] == "" || hook["url"] != "http://example.com/hook" {
		t.Fatalf("unexpected webhook: %v", hook)
	}
	if events := hook["events"].([]any); len(events) != 4 {
		t.Fatalf("expected all event kinds by default, got %v", events)
	}

	w, body = doJSON(t, r, http.MethodPost, "/api/webhooks", `{"url":""}`)
	if w.Code != http.StatusBadRequest || body["error"] != "Webhook URL is required" {
		t.Fatalf("empty url: code=%d body=%v", w.Code, body)
	}
}
