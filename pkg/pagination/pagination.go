package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 24
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Page is a single window of results plus the cursor for the next one.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Cursor represents a (created_at, id) keyset position.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// PriceCursor represents a (price, id) keyset position used by price-sorted listings.
type PriceCursor struct {
	Price decimal.Decimal
	ID    uuid.UUID
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor builds a base64 cursor string from the provided values.
func EncodeCursor(cursor Cursor) string {
	return encode(cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID)
}

// ParseCursor decodes the cursor string back into its components.
func ParseCursor(value string) (*Cursor, error) {
	head, id, err := decode(value)
	if err != nil || head == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, head)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	return &Cursor{CreatedAt: t, ID: id}, nil
}

// EncodePriceCursor builds a base64 cursor for price ordered pages.
func EncodePriceCursor(cursor PriceCursor) string {
	return encode(cursor.Price.String(), cursor.ID)
}

// ParsePriceCursor decodes a cursor produced by EncodePriceCursor.
func ParsePriceCursor(value string) (*PriceCursor, error) {
	head, id, err := decode(value)
	if err != nil || head == "" {
		return nil, err
	}
	price, err := decimal.NewFromString(head)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor price: %w", err)
	}
	return &PriceCursor{Price: price, ID: id}, nil
}

func encode(head string, id uuid.UUID) string {
	payload := fmt.Sprintf("%s|%s", head, id.String())
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decode(value string) (string, uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return "", uuid.Nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", uuid.Nil, fmt.Errorf("invalid cursor format")
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return parts[0], id, nil
}
