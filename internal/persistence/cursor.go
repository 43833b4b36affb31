// Package persistence contains helpers shared by repository implementations and handlers.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

// EncodeCursor turns a listing position into an opaque token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.StartDate.UTC().Format(time.RFC3339Nano), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means the first page.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidationFailed)
	}
	ts, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidationFailed)
	}
	startDate, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidationFailed)
	}
	return &domain.Cursor{StartDate: startDate, ID: id}, nil
}
