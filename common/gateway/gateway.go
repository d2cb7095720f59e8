// Package gateway implements upload, list and delete of customer photos over a single object
// container. Object keys are the only metadata store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"sort"
	"strings"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/keycodec"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/signer"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"golang.org/x/sync/errgroup"
)

// MaxUploadBytes is the default upload size limit (20 MiB).
const MaxUploadBytes int64 = 20 << 20

// DefaultContentTypes is the allowed image MIME set.
var DefaultContentTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/webp",
	"image/heic",
	"image/heif",
}

// Config holds the explicit settings a Gateway is built from.
type Config struct {
	MaxUploadBytes      int64
	AllowedContentTypes []string
	// SignConcurrency bounds parallel URL issuance while listing.
	SignConcurrency int
	// OperationTimeout bounds every storage call made for a single request.
	OperationTimeout time.Duration
}

// DefaultConfig returns the reference policy.
func DefaultConfig() Config {
	return Config{
		MaxUploadBytes:      MaxUploadBytes,
		AllowedContentTypes: DefaultContentTypes,
		SignConcurrency:     8,
		OperationTimeout:    30 * time.Second,
	}
}

// UploadInput is a single photo upload.
type UploadInput struct {
	CustomerID string
	// PhotoType is an optional hint; absent or unrecognized values become room.
	PhotoType   mo.Option[string]
	Filename    string
	ContentType string
	Data        []byte
}

// Photo is the metadata derived from an object key plus a freshly issued access URL.
type Photo struct {
	CustomerID  string
	PhotoType   keycodec.PhotoType
	CreatedAt   time.Time
	Filename    string
	ObjectKey   string
	ContentType string
	Size        int64
	Access      signer.AccessURL
}

// Gateway orchestrates the key codec, the object store and the URL issuer. It holds no mutable
// state and is safe for concurrent use.
type Gateway struct {
	store     storage.ObjectStore
	issuer    signer.Issuer
	codec     keycodec.Codec
	publisher Publisher
	observer  Observer
	config    Config
	now       func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCodec replaces the key codec.
func WithCodec(c keycodec.Codec) Option {
	return func(g *Gateway) { g.codec = c }
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p Publisher) Option {
	return func(g *Gateway) { g.publisher = p }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// WithClock overrides the upload timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New builds a Gateway from explicit collaborators; nothing is read from the environment.
func New(store storage.ObjectStore, issuer signer.Issuer, config Config, opts ...Option) (*Gateway, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: object store is nil", ErrConfiguration)
	}
	if issuer == nil {
		return nil, fmt.Errorf("%w: url issuer is nil", ErrConfiguration)
	}

	defaults := DefaultConfig()
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if len(config.AllowedContentTypes) == 0 {
		config.AllowedContentTypes = defaults.AllowedContentTypes
	}
	if config.SignConcurrency <= 0 {
		config.SignConcurrency = defaults.SignConcurrency
	}
	if config.OperationTimeout <= 0 {
		config.OperationTimeout = defaults.OperationTimeout
	}

	g := &Gateway{
		store:     store,
		issuer:    issuer,
		codec:     keycodec.New(),
		publisher: NopPublisher{},
		observer:  NopObserver{},
		config:    config,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the effective configuration.
func (g *Gateway) Config() Config {
	return g.config
}

// Ping checks the backing container.
func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.config.OperationTimeout)
	defer cancel()
	if err := g.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// Upload validates the input, writes the object under a freshly minted key and returns its
// metadata with a signed URL. Validation failures never touch storage.
func (g *Gateway) Upload(ctx context.Context, in UploadInput) (photo Photo, err error) {
	start := time.Now()
	defer func() { g.observer.RecordOperation(OperationUpload, time.Since(start), err) }()

	if len(in.Data) == 0 {
		return Photo{}, ErrMissingFile
	}
	if err := validateCustomer(in.CustomerID); err != nil {
		return Photo{}, err
	}
	if int64(len(in.Data)) > g.config.MaxUploadBytes {
		return Photo{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrUnsupportedMediaType, len(in.Data), g.config.MaxUploadBytes)
	}
	contentType := resolveContentType(in.ContentType, in.Data)
	if !lo.Contains(g.config.AllowedContentTypes, contentType) {
		return Photo{}, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, contentType)
	}

	photoType := keycodec.NormalizePhotoType(in.PhotoType)
	createdAt := g.now().UTC()
	key, err := g.codec.Encode(in.CustomerID, photoType, createdAt.UnixMilli(), keycodec.ExtensionFromFilename(in.Filename))
	if err != nil {
		return Photo{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	opCtx, cancel := context.WithTimeout(ctx, g.config.OperationTimeout)
	defer cancel()

	if err := g.store.Put(opCtx, key, in.Data, contentType); err != nil {
		log.Error().Err(err).Str("customerId", in.CustomerID).Str("objectKey", key).Msg("Failed to write photo")
		return Photo{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	g.observer.RecordUpload(len(in.Data))

	photo = Photo{
		CustomerID:  in.CustomerID,
		PhotoType:   photoType,
		CreatedAt:   time.UnixMilli(createdAt.UnixMilli()).UTC(),
		Filename:    strings.TrimPrefix(key, g.codec.Prefix(in.CustomerID)),
		ObjectKey:   key,
		ContentType: contentType,
		Size:        int64(len(in.Data)),
		Access:      g.issuer.Issue(opCtx, key),
	}

	log.Info().
		Str("customerId", in.CustomerID).
		Str("objectKey", key).
		Int("size", len(in.Data)).
		Bool("signed", photo.Access.IsSigned()).
		Msg("Photo uploaded")

	g.publish(ctx, EventUploaded, photo.CustomerID, photo.ObjectKey, photo.PhotoType)
	return photo, nil
}

// List returns every photo stored for customerID, most recent first. Equal timestamps are ordered
// by object key so repeated calls are deterministic. Every entry carries a newly issued URL.
func (g *Gateway) List(ctx context.Context, customerID string) (photos []Photo, err error) {
	start := time.Now()
	defer func() { g.observer.RecordOperation(OperationList, time.Since(start), err) }()

	if err := validateCustomer(customerID); err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, g.config.OperationTimeout)
	defer cancel()

	prefix := g.codec.Prefix(customerID)
	photos = []Photo{}
	for info, err := range g.store.List(opCtx, prefix) {
		if err != nil {
			return nil, g.storageError(opCtx, customerID, "list photos", err)
		}
		if !strings.HasPrefix(info.Key, prefix) {
			continue
		}
		decoded := g.codec.Decode(info.Key, prefix)
		createdAt := info.CreatedAt.UTC()
		if decoded.TimestampMillis != 0 {
			createdAt = time.UnixMilli(decoded.TimestampMillis).UTC()
		}
		photos = append(photos, Photo{
			CustomerID:  customerID,
			PhotoType:   decoded.PhotoType,
			CreatedAt:   createdAt,
			Filename:    decoded.Filename,
			ObjectKey:   info.Key,
			ContentType: info.ContentType,
			Size:        info.Size,
		})
	}

	eg, egCtx := errgroup.WithContext(opCtx)
	eg.SetLimit(g.config.SignConcurrency)
	for i := range photos {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			photos[i].Access = g.issuer.Issue(egCtx, photos[i].ObjectKey)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("sign photo urls: %w", err)
	}

	sort.SliceStable(photos, func(i, j int) bool {
		if !photos[i].CreatedAt.Equal(photos[j].CreatedAt) {
			return photos[i].CreatedAt.After(photos[j].CreatedAt)
		}
		return photos[i].ObjectKey < photos[j].ObjectKey
	})

	log.Debug().Str("customerId", customerID).Int("count", len(photos)).Msg("Photos listed")
	return photos, nil
}

// Delete removes {customerID}/{filename}. An absent object yields ErrNotFound, so a second delete of
// the same key always reports ErrNotFound.
func (g *Gateway) Delete(ctx context.Context, customerID, filename string) (err error) {
	start := time.Now()
	defer func() { g.observer.RecordOperation(OperationDelete, time.Since(start), err) }()

	if err := validateCustomer(customerID); err != nil {
		return err
	}
	if filename == "" {
		return ErrMissingFilename
	}
	if strings.Contains(filename, "/") || keycodec.IsDotSegment(filename) {
		return ErrInvalidFilename
	}

	opCtx, cancel := context.WithTimeout(ctx, g.config.OperationTimeout)
	defer cancel()

	key := g.codec.Prefix(customerID) + filename
	exists, err := g.store.Exists(opCtx, key)
	if err != nil {
		return g.storageError(opCtx, customerID, "check photo", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err := g.store.Delete(opCtx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return g.storageError(opCtx, customerID, "delete photo", err)
	}

	log.Info().Str("customerId", customerID).Str("objectKey", key).Msg("Photo deleted")

	decoded := g.codec.Decode(key, g.codec.Prefix(customerID))
	g.publish(ctx, EventDeleted, customerID, key, decoded.PhotoType)
	return nil
}

// storageError logs the backend detail and wraps it as ErrStorage, unless the caller's context
// ended, in which case the context error is returned as is.
func (g *Gateway) storageError(ctx context.Context, customerID, action string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", action, ctxErr)
	}
	log.Error().Err(err).Str("customerId", customerID).Msg("Failed to " + action)
	return fmt.Errorf("%w: %s: %w", ErrStorage, action, err)
}

func validateCustomer(customerID string) error {
	switch err := keycodec.ValidateCustomerID(customerID); {
	case err == nil:
		return nil
	case errors.Is(err, keycodec.ErrMissingCustomer):
		return ErrMissingCustomer
	default:
		return ErrInvalidCustomer
	}
}

// resolveContentType normalizes the declared type and sniffs the payload when none was declared.
func resolveContentType(declared string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mediaType
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	detected := mimetype.Detect(data).String()
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
		return mediaType
	}
	return detected
}
