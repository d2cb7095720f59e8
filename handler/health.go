package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const serviceName = "photo-storage-gateway"

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	storage Pinger
	backend string
	router  *chi.Mux
}

func NewHealthHandler(storage Pinger, backend string) *HealthHandler {
	h := &HealthHandler{
		storage: storage,
		backend: backend,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleHealthCheck)
	r.Get("/storage", h.handleStorageHealth)

	h.router = r
	return h
}

func (h *HealthHandler) Router() *chi.Mux {
	return h.router
}

// handleHealthCheck godoc
//
//	@Summary	Liveness probe
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/health [get]
func (h *HealthHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   serviceName,
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

// handleStorageHealth godoc
//
//	@Summary	Readiness probe against the object store
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Failure	503	{object}	map[string]interface{}
//	@Router		/health/storage [get]
func (h *HealthHandler) handleStorageHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	storageStatus := map[string]interface{}{
		"status":  "healthy",
		"backend": h.backend,
	}
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"storage":   storageStatus,
	}

	if err := h.storage.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("backend", h.backend).Msg("Storage health check failed")
		response["status"] = "unhealthy"
		storageStatus["status"] = "unhealthy"
		utils.WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	utils.WriteJSON(w, http.StatusOK, response)
}
