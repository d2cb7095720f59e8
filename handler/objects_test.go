package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/storage"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectHandlerServesStoredBytes(t *testing.T) {
	store := storage.NewMemoryStorage("http://localhost:8080/objects")
	require.NoError(t, store.Put(context.Background(), "cust 1/100-room.jpg", []byte{0xFF, 0xD8, 0xFF}, "image/jpeg"))

	r := chi.NewRouter()
	r.Mount("/objects", NewObjectHandler(store).Router())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/objects/cust%201/100-room.jpg?sig=abc&sp=r", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/objects/cust%201/200-room.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
