// Package keycodec maps photo metadata to and from structured object keys of the form
// {customerId}/{timestampMillis}-{photoType}.{extension}.
package keycodec

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// PhotoType is the category a photo was uploaded under.
type PhotoType string

const (
	PhotoTypeBefore        PhotoType = "before"
	PhotoTypeAfter         PhotoType = "after"
	PhotoTypeVisualization PhotoType = "visualization"
	PhotoTypeRoom          PhotoType = "room"

	// PhotoTypeUnknown is only produced by Decode for keys that do not follow the layout.
	PhotoTypeUnknown PhotoType = "unknown"
)

// DefaultExtension is used when an uploaded filename carries no usable suffix.
const DefaultExtension = "jpg"

var (
	// ErrMissingCustomer is returned when a key is requested for an empty customer id.
	ErrMissingCustomer = errors.New("customer id is required")
	// ErrInvalidCustomer is returned when a customer id would break prefix partitioning.
	ErrInvalidCustomer = errors.New("customer id must not contain '/'")
)

var (
	knownTypes   = []PhotoType{PhotoTypeBefore, PhotoTypeAfter, PhotoTypeVisualization, PhotoTypeRoom}
	keyPattern   = regexp.MustCompile(`^(\d+)-(\w+)\.`)
	extSanitizer = regexp.MustCompile(`^[a-z0-9]+$`)
)

// Decoded is the metadata recovered from an object key.
type Decoded struct {
	PhotoType       PhotoType
	TimestampMillis int64
	Filename        string
}

// Codec isolates key layout from the gateway so an index-backed implementation can replace it.
type Codec interface {
	Encode(customerID string, photoType PhotoType, timestampMillis int64, extension string) (string, error)
	Decode(objectKey, customerPrefix string) Decoded
	Prefix(customerID string) string
}

// KeyCodec is the string-pattern Codec.
type KeyCodec struct{}

// New returns the default codec.
func New() KeyCodec {
	return KeyCodec{}
}

// IsKnown reports whether t is one of the four accepted upload types.
func (t PhotoType) IsKnown() bool {
	return lo.Contains(knownTypes, t)
}

func (t PhotoType) String() string {
	return string(t)
}

// ParsePhotoType returns the matching type, or room for anything unrecognized.
func ParsePhotoType(s string) PhotoType {
	t := PhotoType(strings.ToLower(strings.TrimSpace(s)))
	if t.IsKnown() {
		return t
	}
	return PhotoTypeRoom
}

// NormalizePhotoType resolves an optional type hint; an absent hint is room.
func NormalizePhotoType(hint mo.Option[string]) PhotoType {
	return ParsePhotoType(hint.OrElse(""))
}

// ExtensionFromFilename returns the lower-cased suffix of name, or DefaultExtension.
func ExtensionFromFilename(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" || !extSanitizer.MatchString(ext) {
		return DefaultExtension
	}
	return ext
}

// ValidateCustomerID checks that id can be used as a key prefix.
func ValidateCustomerID(id string) error {
	if id == "" {
		return ErrMissingCustomer
	}
	if strings.Contains(id, "/") || IsDotSegment(id) {
		return ErrInvalidCustomer
	}
	return nil
}

// IsDotSegment reports whether s is "." or "..", which URL normalization would collapse out of
// the container path.
func IsDotSegment(s string) bool {
	return s == "." || s == ".."
}

// Prefix returns the listing prefix for a customer.
func (KeyCodec) Prefix(customerID string) string {
	return customerID + "/"
}

// Encode builds {customerId}/{timestampMillis}-{photoType}.{extension}.
func (c KeyCodec) Encode(customerID string, photoType PhotoType, timestampMillis int64, extension string) (string, error) {
	if err := ValidateCustomerID(customerID); err != nil {
		return "", err
	}
	if !photoType.IsKnown() {
		photoType = PhotoTypeRoom
	}
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	if ext == "" || !extSanitizer.MatchString(ext) {
		ext = DefaultExtension
	}
	return fmt.Sprintf("%s%d-%s.%s", c.Prefix(customerID), timestampMillis, photoType, ext), nil
}

// Decode recovers the metadata embedded in objectKey. Keys that do not follow the layout decode to
// PhotoTypeUnknown with a zero timestamp; they are never rejected.
func (KeyCodec) Decode(objectKey, customerPrefix string) Decoded {
	filename := strings.TrimPrefix(objectKey, customerPrefix)
	decoded := Decoded{
		PhotoType: PhotoTypeUnknown,
		Filename:  filename,
	}

	m := keyPattern.FindStringSubmatch(filename)
	if m == nil {
		return decoded
	}
	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return decoded
	}
	decoded.TimestampMillis = ts
	decoded.PhotoType = PhotoType(m[2])
	return decoded
}
