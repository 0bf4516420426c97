package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/rooms"
	"github.com/desertthunder/cosmic/internal/shared"
	"github.com/desertthunder/cosmic/internal/viz"
)

// maxBodyBytes bounds publish bodies.
const maxBodyBytes = 1 << 20

func orDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}

// TopResponse is the body of GET /api/me/top.
type TopResponse struct {
	Range models.TimeRange      `json:"range"`
	Items []models.ArtistRecord `json:"items"`
}

// TopHandler returns the signed-in listener's top artists, refreshing the session token as needed.
type TopHandler struct {
	catalogs CatalogFactory
	sessions *SessionManager
	limit    int
	logger   *log.Logger
}

// NewTopHandler creates the top artists handler. limit <= 0 requests 30 artists.
func NewTopHandler(catalogs CatalogFactory, sessions *SessionManager, limit int, logger *log.Logger) *TopHandler {
	if limit <= 0 {
		limit = 30
	}
	return &TopHandler{catalogs: catalogs, sessions: sessions, limit: limit, logger: orDiscard(logger).WithPrefix("top")}
}

func (h *TopHandler) Routes() []string { return []string{"/api/me/top"} }

func (h *TopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	payload, err := h.sessions.Read(r)
	if err != nil {
		fail(w, err)
		return
	}

	catalog := h.catalogs(payload.Token())
	token, err := catalog.Token()
	if err != nil {
		h.logger.Warn("session refresh failed", "error", err)
		h.sessions.Clear(w)
		fail(w, err)
		return
	}
	if token.AccessToken != payload.AccessToken {
		if err := h.sessions.Issue(w, PayloadFromToken(token)); err != nil {
			h.logger.Error("failed to reissue session", "error", err)
		}
	}

	tr := models.ParseTimeRange(r.URL.Query().Get("range"))
	artists, err := catalog.TopArtists(r.Context(), tr, h.limit)
	if err != nil {
		h.logger.Warn("top artists failed", "range", tr, "error", err)
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TopResponse{Range: tr, Items: artists})
}

// CreateResponse is the body of POST /group/create.
type CreateResponse struct {
	Code string `json:"code"`
}

// PublishResponse is the body of POST /group/publish.
type PublishResponse struct {
	OK   bool `json:"ok"`
	Size int  `json:"size"`
}

// GroupHandler serves the room routes over a [rooms.Service].
type GroupHandler struct {
	rooms  *rooms.Service
	logger *log.Logger
}

func NewGroupHandler(svc *rooms.Service, logger *log.Logger) *GroupHandler {
	return &GroupHandler{rooms: svc, logger: orDiscard(logger).WithPrefix("group")}
}

func (h *GroupHandler) Routes() []string {
	return []string{"/group/create", "/group/get", "/group/publish"}
}

func (h *GroupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/group/create":
		if allowMethod(w, r, http.MethodPost) {
			h.create(w, r)
		}
	case "/group/get":
		if allowMethod(w, r, http.MethodGet) {
			h.get(w, r)
		}
	case "/group/publish":
		if allowMethod(w, r, http.MethodPost) {
			h.publish(w, r)
		}
	default:
		writeError(w, http.StatusNotFound, "not_found")
	}
}

func (h *GroupHandler) create(w http.ResponseWriter, r *http.Request) {
	code, err := h.rooms.Create(r.Context())
	if err != nil {
		h.logger.Warn("room creation failed", "error", err)
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CreateResponse{Code: code})
}

func (h *GroupHandler) get(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	room, err := h.rooms.Read(r.Context(), code, r.URL.Query().Get("member"))
	if err != nil {
		fail(w, err)
		return
	}
	if room.Members == nil {
		room.Members = []models.Member{}
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *GroupHandler) publish(w http.ResponseWriter, r *http.Request) {
	var req models.PublishRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Code) == "" || req.Member.ID == "" {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	size, err := h.rooms.Publish(r.Context(), req.Code, req.Member)
	if err != nil {
		h.logger.Warn("publish failed", "code", req.Code, "member", req.Member.ID, "error", err)
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PublishResponse{OK: true, Size: size})
}

// SnapshotHandler renders a room's galaxy headlessly and returns it as SVG.
type SnapshotHandler struct {
	rooms  *rooms.Service
	galaxy shared.GalaxyConfig
	logger *log.Logger
}

const (
	defaultSnapshotWidth  = 1200
	defaultSnapshotHeight = 800
	minSnapshotSide       = 200
	maxSnapshotSide       = 4000
)

func NewSnapshotHandler(svc *rooms.Service, galaxy shared.GalaxyConfig, logger *log.Logger) *SnapshotHandler {
	return &SnapshotHandler{rooms: svc, galaxy: galaxy, logger: orDiscard(logger).WithPrefix("snapshot")}
}

func (h *SnapshotHandler) Routes() []string { return []string{"/galaxy/snapshot.svg"} }

func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	artists, err := h.rooms.Artists(r.Context(), code, "")
	if err != nil {
		fail(w, err)
		return
	}

	width := side(q.Get("w"), defaultSnapshotWidth)
	height := side(q.Get("h"), defaultSnapshotHeight)

	var buf bytes.Buffer
	opts := viz.Options{Galaxy: h.galaxy, Logger: h.logger}
	if err := viz.SnapshotSVG(&buf, artists, width, height, h.galaxy.SnapshotTicks, opts); err != nil {
		h.logger.Error("snapshot failed", "code", code, "error", err)
		fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// side parses a snapshot dimension, clamped to a sane range.
func side(raw string, fallback float64) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return max(minSnapshotSide, min(v, maxSnapshotSide))
}

// HealthHandler reports liveness.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// IndexHandler describes the service and whether the caller holds a session.
func IndexHandler(sessions *SessionManager, routes func() []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := sessions.Read(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"service":       "cosmic",
			"authenticated": err == nil,
			"routes":        routes(),
		})
	})
}
