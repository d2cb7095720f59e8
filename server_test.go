package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"testing"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/config"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/metrics"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/signer"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/storage"
	"github.com/LexiconIndonesia/photo-storage-gateway/handler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *AppHttpServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = config.BackendMemory

	reg := prometheus.NewRegistry()
	observer, err := metrics.NewPrometheusObserver("", reg)
	require.NoError(t, err)

	store := storage.NewMemoryStorage(cfg.Storage.MemoryBaseURL)
	g, err := gateway.New(store, signer.NewSharedKeyIssuer(store.ContainerURL(), ""), gateway.DefaultConfig(), gateway.WithObserver(observer))
	require.NoError(t, err)

	server, err := NewAppHttpServer(cfg)
	require.NoError(t, err)
	server.SetGateway(g)
	server.SetGatherer(reg)
	server.SetObjectSource(store)
	server.setupRoute()
	return server
}

func TestServerRoutes(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/health/storage", http.StatusOK},
		{http.MethodGet, "/photos/cust-1", http.StatusOK},
		{http.MethodDelete, "/photos/cust-1/1-room.jpg", http.StatusNotFound},
		{http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServerExposesGatewayMetrics(t *testing.T) {
	server := newTestServer(t)

	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/photos/cust-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `photo_gateway_operation_duration_seconds_count{operation="list"} 1`)
}

func TestServerCORSPreflight(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/photos/upload", bytes.NewReader(nil))
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerServesMemoryObjectURLs(t *testing.T) {
	server := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("customerId", "cust-1"))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="a.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	png := []byte("\x89PNG\r\n\x1a\n-image-")
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/photos/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var upload handler.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upload))
	u, err := url.Parse(upload.URL)
	require.NoError(t, err)
	assert.Equal(t, "/objects/"+upload.BlobName, u.Path)

	rec = httptest.NewRecorder()
	server.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, png, rec.Body.Bytes())
}

func TestObjectMountPath(t *testing.T) {
	assert.Equal(t, "/objects", objectMountPath("http://localhost:8080/objects/"))
	assert.Equal(t, "/dev/blobs", objectMountPath("http://127.0.0.1:8080/dev/blobs"))
	assert.Equal(t, "/objects", objectMountPath("http://localhost:8080"))
}
