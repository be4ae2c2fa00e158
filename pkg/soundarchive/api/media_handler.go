package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// MediaHandler issues access URLs and removes stray objects.
type MediaHandler struct {
	service soundarchive.Service
	limiter *RateLimiter
}

// NewMediaHandler creates a media handler. A nil limiter disables rate limiting.
func NewMediaHandler(service soundarchive.Service, limiter *RateLimiter) *MediaHandler {
	return &MediaHandler{service: service, limiter: limiter}
}

// Routes returns the routes for media
func (h *MediaHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.limiter.Middleware).Post("/signed-urls", h.SignedURLs)
	r.With(AdminAvailable(h.service), RequireRole(soundarchive.RequireAdmin)).Delete("/objects", h.DeleteObject)
	r.Get("/*", h.GetMedia)

	return r
}

// SignedURLsRequest accepts keys under either name. Expires is in seconds.
type SignedURLsRequest struct {
	Keys    []string `json:"keys"`
	Paths   []string `json:"paths"`
	Expires int      `json:"expires"`
}

// SignedURLsResponse maps every requested key to a URL or null.
type SignedURLsResponse struct {
	URLs      map[string]*string `json:"urls"`
	ExpiresIn int                `json:"expires_in"`
}

// MediaURLResponse is a single access URL.
type MediaURLResponse struct {
	URL       string `json:"url"`
	Public    bool   `json:"public"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

// DeleteObjectRequest names an unreferenced object to remove.
type DeleteObjectRequest struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

// SignedURLs resolves a batch of keys. Keys that cannot be served map to null.
func (h *MediaHandler) SignedURLs(w http.ResponseWriter, r *http.Request) {
	var req SignedURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "body", "invalid JSON")
		return
	}
	keys := append(req.Keys, req.Paths...)
	if keys == nil {
		keys = []string{}
	}

	res, err := h.service.IssueURLs(r.Context(), PrincipalFrom(r.Context()), soundarchive.IssueRequest{
		Keys:    keys,
		Expires: time.Duration(req.Expires) * time.Second,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, SignedURLsResponse{URLs: res.URLs(), ExpiresIn: int(res.TTL / time.Second)})
}

// GetMedia resolves one key taken from the path.
func (h *MediaHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		badRequest(w, r, "key", "is required")
		return
	}
	expires, err := intParam(r.URL.Query().Get("expires"))
	if err != nil {
		badRequest(w, r, "expires", "must be a number of seconds")
		return
	}

	res, err := h.service.IssueURLs(r.Context(), PrincipalFrom(r.Context()), soundarchive.IssueRequest{
		Keys:    []string{key},
		Expires: time.Duration(expires) * time.Second,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	grant := res.Grants[key]
	if grant == nil {
		writeError(w, r, soundarchive.ErrNotFound)
		return
	}
	resp := MediaURLResponse{URL: grant.URL, Public: grant.Public}
	if !grant.Public {
		resp.ExpiresIn = int(res.TTL / time.Second)
	}
	render.JSON(w, r, resp)
}

// DeleteObject removes one object no record references.
func (h *MediaHandler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	var req DeleteObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "body", "invalid JSON")
		return
	}
	key := req.Key
	if key == "" {
		key = req.Path
	}
	if err := h.service.DeleteObject(r.Context(), PrincipalFrom(r.Context()), key); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
