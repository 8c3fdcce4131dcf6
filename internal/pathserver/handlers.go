package pathserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/udisondev/wayfinder/internal/pathfind"
)

// cellRef is a room-local cell in wire form.
type cellRef struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Room string `json:"room"`
}

// goalRef is a goal cell with its acceptance range.
type goalRef struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Room  string `json:"room"`
	Range int    `json:"range,omitempty"`
}

// searchRequest is the wire form of one search. Zero option fields fall back
// to the server's configured defaults.
type searchRequest struct {
	Origin          cellRef           `json:"origin"`
	Goals           []goalRef         `json:"goals"`
	PlainCost       int               `json:"plainCost,omitempty"`
	SwampCost       int               `json:"swampCost,omitempty"`
	MaxRooms        int               `json:"maxRooms,omitempty"`
	MaxOps          int               `json:"maxOps,omitempty"`
	MaxCost         uint32            `json:"maxCost,omitempty"`
	Flee            bool              `json:"flee,omitempty"`
	HeuristicWeight float64           `json:"heuristicWeight,omitempty"`
	CostMatrices    map[string]string `json:"costMatrices,omitempty"` // room name -> base64 blob
}

// searchResponse is the wire form of a result. Path is in goal→origin order.
type searchResponse struct {
	Path       []cellRef `json:"path"`
	Ops        uint32    `json:"ops"`
	Cost       uint32    `json:"cost"`
	Incomplete bool      `json:"incomplete"`
	Status     string    `json:"status"`
	Code       int       `json:"code"`
	Error      string    `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}

	resp := s.runSearch(r.Context(), req)
	status := http.StatusOK
	switch resp.Code {
	case -1:
		status = http.StatusBadRequest
	case -4:
		status = http.StatusInternalServerError
	case -5:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// runSearch converts the wire request, executes it, and converts the result.
// Shared by the HTTP and websocket paths.
func (s *Server) runSearch(ctx context.Context, req searchRequest) searchResponse {
	engineReq, err := s.buildRequest(req)
	if err != nil {
		return searchResponse{Status: pathfind.StatusError.String(), Code: -1, Error: err.Error()}
	}

	res, err := s.search(ctx, engineReq)
	code := pathfind.StatusCode(res, err)
	resp := searchResponse{
		Path:       make([]cellRef, 0, len(res.Path)),
		Ops:        res.Ops,
		Cost:       uint32(res.Cost),
		Incomplete: res.Incomplete,
		Status:     res.Status.String(),
		Code:       code,
	}
	if err != nil {
		slog.Debug("search failed", "status", res.Status.String(), "err", err)
		resp.Error = err.Error()
	}
	for _, step := range res.Path {
		resp.Path = append(resp.Path, cellRef{X: step.X, Y: step.Y, Room: step.Room})
	}
	return resp
}

// buildRequest maps wire fields onto engine types, applying configured
// defaults to unset options.
func (s *Server) buildRequest(req searchRequest) (*pathfind.Request, error) {
	origin, err := pathfind.RoomPos{X: req.Origin.X, Y: req.Origin.Y, Room: req.Origin.Room}.World()
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}

	goals := make([]pathfind.Goal, 0, len(req.Goals))
	for i, g := range req.Goals {
		pos, err := pathfind.RoomPos{X: g.X, Y: g.Y, Room: g.Room}.World()
		if err != nil {
			return nil, fmt.Errorf("goal %d: %w", i, err)
		}
		if g.Range < 0 {
			return nil, fmt.Errorf("goal %d: negative range", i)
		}
		goals = append(goals, pathfind.Goal{Pos: pos, Range: pathfind.Cost(g.Range)})
	}

	defaults := s.cfg.Search
	opts := pathfind.Options{
		PlainCost:       pickCost(req.PlainCost, defaults.PlainCost),
		SwampCost:       pickCost(req.SwampCost, defaults.SwampCost),
		MaxRooms:        pickInt(req.MaxRooms, defaults.MaxRooms),
		MaxOps:          uint32(pickInt(req.MaxOps, defaults.MaxOps)),
		MaxCost:         pathfind.Cost(req.MaxCost),
		Flee:            req.Flee,
		HeuristicWeight: req.HeuristicWeight,
	}
	if opts.HeuristicWeight == 0 {
		opts.HeuristicWeight = defaults.HeuristicWeight
	}

	var source pathfind.RoomSource
	if len(req.CostMatrices) > 0 {
		table := make(pathfind.FixedMatrixTable, len(req.CostMatrices))
		for name, encoded := range req.CostMatrices {
			pos, err := pathfind.ParseRoomName(name)
			if err != nil {
				return nil, fmt.Errorf("cost matrix: %w", err)
			}
			matrix, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("cost matrix for %s: %w", name, err)
			}
			if len(matrix) < pathfind.RoomArea {
				return nil, fmt.Errorf("cost matrix for %s: got %d bytes, want %d", name, len(matrix), pathfind.RoomArea)
			}
			table[pos] = matrix
		}
		source = table
	}

	return &pathfind.Request{Origin: origin, Goals: goals, Opts: opts, Rooms: source}, nil
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.repo == nil {
		httpError(w, "terrain reload not available", http.StatusServiceUnavailable)
		return
	}

	rooms, err := s.repo.LoadAll(r.Context())
	if err != nil {
		slog.Error("terrain reload failed", "err", err)
		httpError(w, "loading terrain", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	n := s.store.LoadTerrain(rooms)
	s.mu.Unlock()

	slog.Info("terrain reloaded", "rooms", n)
	writeJSON(w, http.StatusOK, map[string]int{"rooms": n})
}

// requireAdmin guards a handler with the configured bcrypt admin token.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminTokenHash == "" {
			httpError(w, "admin surface disabled", http.StatusForbidden)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			httpError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminTokenHash), []byte(token)); err != nil {
			if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				slog.Warn("admin token hash unusable", "err", err)
			}
			httpError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Debug("encoding response", "err", err)
	}
}

func httpError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pickInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func pickCost(v, fallback int) pathfind.Cost {
	if v > 0 {
		return pathfind.Cost(v)
	}
	return pathfind.Cost(fallback)
}
