package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// ContentHandler serves the content table through the visibility and upload rules.
type ContentHandler struct {
	service        soundarchive.Service
	maxUploadBytes int64
}

// NewContentHandler creates a new content handler. maxUploadBytes bounds the
// whole request body; zero disables the bound.
func NewContentHandler(service soundarchive.Service, maxUploadBytes int64) *ContentHandler {
	return &ContentHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// Routes returns the routes for content
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListContent)
	r.Get("/{id}", h.GetContent)

	r.Group(func(r chi.Router) {
		r.Use(AdminAvailable(h.service))
		r.Use(RequireRole(soundarchive.RequireAdmin))
		r.Post("/", h.CreateContent)
		r.Patch("/{id}", h.UpdateContent)
		r.Delete("/{id}", h.DeleteContent)
	})

	return r
}

// CreatedResponse is returned by POST /content.
type CreatedResponse struct {
	ID      string                     `json:"id"`
	Content *soundarchive.ContentRecord `json:"content"`
}

// KeysResponse is returned by keys-only edits.
type KeysResponse struct {
	Keys map[soundarchive.MediaKind]string `json:"keys"`
}

// ListContent returns a page of content visible to the caller
func (h *ContentHandler) ListContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := soundarchive.ListFilters{
		Query:       q.Get("q"),
		Status:      soundarchive.Status(q.Get("status")),
		IncludeURLs: q.Get("include_urls") == "1" || q.Get("include_urls") == "true",
	}
	var err error
	if filters.Page, err = intParam(q.Get("page")); err != nil {
		badRequest(w, r, "page", "must be an integer")
		return
	}
	if filters.Limit, err = intParam(q.Get("limit")); err != nil {
		badRequest(w, r, "limit", "must be an integer")
		return
	}
	expires, err := intParam(q.Get("expires"))
	if err != nil {
		badRequest(w, r, "expires", "must be a number of seconds")
		return
	}
	filters.URLExpiry = time.Duration(expires) * time.Second

	page, err := h.service.ListVisible(r.Context(), PrincipalFrom(r.Context()), filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, page)
}

// GetContent returns one record if the caller may see it
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := contentID(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetVisible(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// CreateContent ingests a multipart or legacy JSON upload
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	form, err := parseUploadForm(w, r, h.maxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, err := h.service.CreateContent(r.Context(), PrincipalFrom(r.Context()), form.uploadRequest())
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Content created", "content_id", record.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, CreatedResponse{ID: record.ID.String(), Content: record})
}

// UpdateContent edits a record. With ?return=keys the files are stored and
// their keys returned without touching the record.
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, ok := contentID(w, r)
	if !ok {
		return
	}
	form, err := parseUploadForm(w, r, h.maxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := PrincipalFrom(r.Context())

	if r.URL.Query().Get("return") == "keys" {
		keys, err := h.service.ReplaceMedia(r.Context(), p, form.replaceRequest(id))
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.JSON(w, r, KeysResponse{Keys: keys})
		return
	}

	record, err := h.service.UpdateContent(r.Context(), p, id, form.updateRequest())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, record)
}

// DeleteContent removes a record and its media
func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	id, ok := contentID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteContent(r.Context(), PrincipalFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func contentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, r, "id", "must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
