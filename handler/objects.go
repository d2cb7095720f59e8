package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/utils"
	"github.com/go-chi/chi/v5"
)

// ObjectGetter reads stored bytes by object key
type ObjectGetter interface {
	Get(key string) ([]byte, string, bool)
}

// ObjectHandler serves objects of the in-memory backend so its URLs resolve during local runs.
// Query parameters, including any SAS token, are ignored.
type ObjectHandler struct {
	objects ObjectGetter
	router  *chi.Mux
}

func NewObjectHandler(objects ObjectGetter) *ObjectHandler {
	h := &ObjectHandler{
		objects: objects,
	}

	r := chi.NewRouter()
	r.Get("/*", h.handleGetObject)

	h.router = r
	return h
}

func (h *ObjectHandler) Router() *chi.Mux {
	return h.router
}

func (h *ObjectHandler) handleGetObject(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || key == "" {
		utils.WriteError(w, http.StatusBadRequest, "Malformed object key")
		return
	}

	data, contentType, ok := h.objects.Get(key)
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "Object not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
