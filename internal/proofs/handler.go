package proofs

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barmanlink/barmanlink/internal/platform/httpx"
)

// Handler exposes proof upload and retrieval.
type Handler struct {
	logger *slog.Logger
	store  *Store
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers proof routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.upload)
	r.Get("/{ref}", h.download)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, MaxProofSize)
	data, err := io.ReadAll(body)
	if err != nil {
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Too Large", "proof exceeds size limit")
		return
	}
	ref, err := h.store.Save(r.Context(), data)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmpty):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		case errors.Is(err, ErrTooLarge):
			httpx.Problem(w, http.StatusRequestEntityTooLarge, "Too Large", err.Error())
		default:
			h.logger.Error("store proof", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"proof_ref": ref})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	data, err := h.store.Load(r.Context(), ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown proof reference")
			return
		}
		h.logger.Error("load proof", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
