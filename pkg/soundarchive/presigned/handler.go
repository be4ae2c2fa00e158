package presigned

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
)

// Source opens stored objects for serving.
type Source interface {
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Handler serves objects addressed by URLs produced by SignKey. Requests
// without a valid, unexpired signature are rejected before the store is touched.
func Handler(signer *Signer, src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := signer.ValidateRequest(r)
		if err != nil {
			handleValidationError(w, err)
			return
		}

		body, contentType, err := src.Open(r.Context(), key)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				http.Error(w, "Object not found", http.StatusNotFound)
				return
			}
			slog.Error("presigned: open object", "key", key, "err", err)
			http.Error(w, "Failed to read object", http.StatusBadGateway)
			return
		}
		defer body.Close()

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Header().Set("Cache-Control", "private, no-store")
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, body); err != nil {
			slog.Warn("presigned: stream object", "key", key, "err", err)
		}
	})
}

// handleValidationError answers a request whose link did not validate
func handleValidationError(w http.ResponseWriter, err error) {
	if r, ok := rejectionFor(err); ok {
		http.Error(w, r.text, r.status)
		return
	}
	slog.Warn("presigned: rejected request", "err", err)
	http.Error(w, "Invalid URL", http.StatusBadRequest)
}
