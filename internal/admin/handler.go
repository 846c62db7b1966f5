// Package admin exposes the gate's administrative surface: list
// management, usage statistics and suspicious-activity inspection.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/gate"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/platform/httpx"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/ratelimit"
)

// Handler serves the administrative endpoints. All operations are safe to
// call concurrently with request traffic.
type Handler struct {
	gate     *gate.Gate
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(g *gate.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		gate:     g,
		logger:   logger,
		validate: validator.New(),
	}
}

// MountRoutes registers the admin routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/lists", h.listIPs)
	r.Post("/allowlist", h.addAllow)
	r.Delete("/allowlist/{ip}", h.removeAllow)
	r.Post("/denylist", h.addDeny)
	r.Delete("/denylist/{ip}", h.removeDeny)
	r.Get("/stats", h.usageStats)
	r.Get("/suspicious", h.suspicious)
}

type ipRequest struct {
	IP string `json:"ip" validate:"required,ip"`
}

func (h *Handler) decodeIP(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req ipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return "", false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ip must be a valid address")
		return "", false
	}
	return req.IP, true
}

func (h *Handler) listIPs(w http.ResponseWriter, r *http.Request) {
	allow, deny := h.gate.Lists().Snapshot()
	httpx.JSON(w, http.StatusOK, map[string][]string{
		"allowlist": allow,
		"denylist":  deny,
	})
}

func (h *Handler) addAllow(w http.ResponseWriter, r *http.Request) {
	ip, ok := h.decodeIP(w, r)
	if !ok {
		return
	}
	h.gate.Lists().AddAllow(ip)
	h.logger.Info("allowlist add", slog.String("ip", ip))
	httpx.JSON(w, http.StatusOK, map[string]string{"ip": ip, "list": "allow"})
}

func (h *Handler) removeAllow(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	removed := h.gate.Lists().RemoveAllow(ip)
	httpx.JSON(w, http.StatusOK, map[string]any{"ip": ip, "removed": removed})
}

func (h *Handler) addDeny(w http.ResponseWriter, r *http.Request) {
	ip, ok := h.decodeIP(w, r)
	if !ok {
		return
	}
	h.gate.Lists().AddDeny(ip)
	h.logger.Info("denylist add", slog.String("ip", ip))
	httpx.JSON(w, http.StatusOK, map[string]string{"ip": ip, "list": "deny"})
}

func (h *Handler) removeDeny(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	removed := h.gate.Lists().RemoveDeny(ip)
	if removed {
		h.logger.Info("denylist remove", slog.String("ip", ip))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ip": ip, "removed": removed})
}

func (h *Handler) usageStats(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.gate.Stats())
}

func (h *Handler) suspicious(w http.ResponseWriter, r *http.Request) {
	severity := ratelimit.Severity(r.URL.Query().Get("severity"))
	switch severity {
	case "", ratelimit.SeverityLow, ratelimit.SeverityMedium, ratelimit.SeverityHigh, ratelimit.SeverityCritical:
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown severity")
		return
	}
	httpx.JSON(w, http.StatusOK, h.gate.SuspiciousActivities(severity))
}
