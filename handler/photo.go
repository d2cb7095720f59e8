package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// CreatedAtLayout is ISO-8601 with millisecond precision
const CreatedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// multipart framing allowance on top of the file limit
const multipartOverhead = 1 << 20

const genericStorageMessage = "Storage service is unavailable, please try again later"

type PhotoService interface {
	Upload(ctx context.Context, in gateway.UploadInput) (gateway.Photo, error)
	List(ctx context.Context, customerID string) ([]gateway.Photo, error)
	Delete(ctx context.Context, customerID, filename string) error
}

// UploadResponse is returned by POST /photos/upload
type UploadResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	PhotoType string `json:"photoType"`
	CreatedAt string `json:"createdAt"`
	BlobName  string `json:"blobName"`
	Signed    bool   `json:"signed"`
}

// PhotoItem is one entry of ListResponse
type PhotoItem struct {
	URL       string `json:"url"`
	PhotoType string `json:"photoType"`
	CreatedAt string `json:"createdAt"`
	Filename  string `json:"filename"`
}

// ListResponse is returned by GET /photos/{customerId}
type ListResponse struct {
	Photos []PhotoItem `json:"photos"`
	Count  int         `json:"count"`
}

// DeleteResponse is returned by DELETE /photos/{customerId}/{filename}
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PhotoHandler struct {
	photos         PhotoService
	maxUploadBytes int64
	router         *chi.Mux
}

func NewPhotoHandler(photos PhotoService, maxUploadBytes int64) *PhotoHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = gateway.MaxUploadBytes
	}
	h := &PhotoHandler{
		photos:         photos,
		maxUploadBytes: maxUploadBytes,
	}

	r := chi.NewRouter()
	r.Post("/upload", h.handleUpload)
	r.Get("/{customerId}", h.handleList)
	r.Delete("/{customerId}/{filename}", h.handleDelete)
	// empty filename segment, rejected by the gateway
	r.Delete("/{customerId}/", h.handleDelete)

	h.router = r
	return h
}

func (h *PhotoHandler) Router() *chi.Mux {
	return h.router
}

// handleUpload godoc
//
//	@Summary		Upload a photo
//	@Description	Stores a photo under the customer's prefix and returns a time-limited read URL.
//	@Tags			photos
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"Photo bytes"
//	@Param			customerId	formData	string	true	"Customer id"
//	@Param			photoType	formData	string	false	"before, after, visualization or room"
//	@Success		200			{object}	UploadResponse
//	@Failure		400			{object}	utils.ErrorResponse
//	@Failure		415			{object}	utils.ErrorResponse
//	@Failure		500			{object}	utils.ErrorResponse
//	@Router			/photos/upload [post]
func (h *PhotoHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.WriteError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("File exceeds the %d byte limit", h.maxUploadBytes))
			return
		}
		utils.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	in := gateway.UploadInput{
		CustomerID: strings.TrimSpace(r.FormValue("customerId")),
		PhotoType:  formOption(r, "photoType"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		utils.WriteError(w, http.StatusBadRequest, "Invalid file field")
		return
	default:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		in.Data = data
		in.Filename = header.Filename
		in.ContentType = header.Header.Get("Content-Type")
	}

	photo, err := h.photos.Upload(r.Context(), in)
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, UploadResponse{
		Success:   true,
		URL:       photo.Access.URL,
		Filename:  photo.Filename,
		PhotoType: string(photo.PhotoType),
		CreatedAt: formatCreatedAt(photo.CreatedAt),
		BlobName:  photo.ObjectKey,
		Signed:    photo.Access.IsSigned(),
	})
}

// handleList godoc
//
//	@Summary		List photos
//	@Description	Lists a customer's photos, most recent first, each with a fresh read URL.
//	@Tags			photos
//	@Produce		json
//	@Param			customerId	path		string	true	"Customer id"
//	@Success		200			{object}	ListResponse
//	@Failure		400			{object}	utils.ErrorResponse
//	@Failure		500			{object}	utils.ErrorResponse
//	@Router			/photos/{customerId} [get]
func (h *PhotoHandler) handleList(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathParam(w, r, "customerId")
	if !ok {
		return
	}

	photos, err := h.photos.List(r.Context(), customerID)
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}

	items := lo.Map(photos, func(p gateway.Photo, _ int) PhotoItem {
		return PhotoItem{
			URL:       p.Access.URL,
			PhotoType: string(p.PhotoType),
			CreatedAt: formatCreatedAt(p.CreatedAt),
			Filename:  p.Filename,
		}
	})

	utils.WriteJSON(w, http.StatusOK, ListResponse{
		Photos: items,
		Count:  len(items),
	})
}

// handleDelete godoc
//
//	@Summary		Delete a photo
//	@Tags			photos
//	@Produce		json
//	@Param			customerId	path		string	true	"Customer id"
//	@Param			filename	path		string	true	"Filename as returned by upload or list"
//	@Success		200			{object}	DeleteResponse
//	@Failure		400			{object}	utils.ErrorResponse
//	@Failure		404			{object}	utils.ErrorResponse
//	@Failure		500			{object}	utils.ErrorResponse
//	@Router			/photos/{customerId}/{filename} [delete]
func (h *PhotoHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathParam(w, r, "customerId")
	if !ok {
		return
	}
	filename, ok := pathParam(w, r, "filename")
	if !ok {
		return
	}

	if err := h.photos.Delete(r.Context(), customerID, filename); err != nil {
		writeGatewayError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, DeleteResponse{
		Success: true,
		Message: fmt.Sprintf("Photo %s deleted", filename),
	})
}

// pathParam returns the decoded URL parameter. chi matches on the raw path, so an encoded slash
// survives routing and has to be decoded before validation.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Malformed %s", name))
		return "", false
	}
	return value, true
}

func formOption(r *http.Request, key string) mo.Option[string] {
	value := strings.TrimSpace(r.FormValue(key))
	if value == "" {
		return mo.None[string]()
	}
	return mo.Some(value)
}

func formatCreatedAt(t time.Time) string {
	return t.UTC().Format(CreatedAtLayout)
}

// writeGatewayError maps gateway errors onto status codes. Storage detail stays in the logs.
func writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrValidation):
		utils.WriteError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, gateway.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "Photo not found")
	case errors.Is(err, gateway.ErrUnsupportedMediaType):
		utils.WriteError(w, http.StatusUnsupportedMediaType, "Unsupported media type or file too large")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Photo request timed out")
		utils.WriteError(w, http.StatusGatewayTimeout, "Storage service did not respond in time")
	case errors.Is(err, context.Canceled):
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("Photo request cancelled by client")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Photo request failed")
		utils.WriteError(w, http.StatusInternalServerError, genericStorageMessage)
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, gateway.ErrMissingFile):
		return "file is required"
	case errors.Is(err, gateway.ErrMissingCustomer):
		return "customerId is required"
	case errors.Is(err, gateway.ErrInvalidCustomer):
		return "customerId must not contain '/' or be a dot segment"
	case errors.Is(err, gateway.ErrMissingFilename):
		return "filename is required"
	case errors.Is(err, gateway.ErrInvalidFilename):
		return "filename must not contain '/' or be a dot segment"
	default:
		return "Invalid request"
	}
}
