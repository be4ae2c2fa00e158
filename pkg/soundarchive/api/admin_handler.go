package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// AdminHandler serves user administration and operator endpoints.
type AdminHandler struct {
	service soundarchive.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service soundarchive.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

// Routes returns the admin routes. Every route requires the admin role and
// answers 503 when admin features are disabled.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(AdminAvailable(h.service))
	r.Use(RequireRole(soundarchive.RequireAdmin))

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Get("/", h.ListUsers)
		r.Patch("/{id}", h.UpdateUser)
		r.Delete("/{id}", h.DeleteUser)
	})
	r.Post("/ensure-bucket", h.EnsureBucket)
	r.Get("/health", h.Health)
	r.Post("/reconcile", h.Reconcile)

	return r
}

// CreateUserRequest is the body of POST /admin/users
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

// UpdateUserRequest is the body of PATCH /admin/users/{id}
type UpdateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
	Reason   string  `json:"reason"`
}

// UserListResponse is a page of users
type UserListResponse struct {
	Users []*soundarchive.UserRecord `json:"users"`
	Page  int                        `json:"page"`
	Limit int                        `json:"limit"`
}

// ReconcileRequest is the body of POST /admin/reconcile. MinAge is in seconds.
type ReconcileRequest struct {
	MinAge int  `json:"min_age"`
	Delete bool `json:"delete"`
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "body", "invalid JSON")
		return
	}
	user, err := h.service.CreateUser(r.Context(), PrincipalFrom(r.Context()), soundarchive.NewUserRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     soundarchive.Role(req.Role),
		Active:   req.IsActive,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, user)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r.URL.Query().Get("page"))
	if err != nil {
		badRequest(w, r, "page", "must be an integer")
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		badRequest(w, r, "limit", "must be an integer")
		return
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	users, err := h.service.ListUsers(r.Context(), PrincipalFrom(r.Context()), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, UserListResponse{Users: users, Page: page, Limit: limit})
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "body", "invalid JSON")
		return
	}
	patch := soundarchive.UserPatch{Active: req.IsActive, Reason: req.Reason}
	if req.Role != nil {
		role := soundarchive.Role(*req.Role)
		patch.Role = &role
	}
	user, err := h.service.UpdateUser(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, user)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) EnsureBucket(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EnsureBucket(r.Context(), PrincipalFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"ok": true})
}

func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.service.Health(r.Context())
	w.Header().Set("Cache-Control", "no-cache")
	if !report.Healthy() {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, report)
}

func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, r, "body", "invalid JSON")
			return
		}
	}
	report, err := h.service.Reconcile(r.Context(), soundarchive.ReconcileOptions{
		MinAge: time.Duration(req.MinAge) * time.Second,
		Delete: req.Delete,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}
