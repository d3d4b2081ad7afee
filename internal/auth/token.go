package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nomdev/corbo/internal/apidate"
)

// Claims is the payload embedded in the middle segment of an access token.
type Claims struct {
	UserID         int64        `json:"userId"`
	MinutesTimeout int64        `json:"minutesTimeout"`
	CreationTime   apidate.Time `json:"creationTime"`
}

// ExpiresAt is the instant the token stops being valid.
func (c Claims) ExpiresAt() time.Time {
	return c.CreationTime.Add(time.Duration(c.MinutesTimeout) * time.Minute)
}

// ParseAccessToken extracts the claims from a three-part token. The
// signature is not verified; the server does that.
func ParseAccessToken(raw string) (Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidToken, len(parts))
	}

	payload, err := DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: decode payload: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// DecodeSegment decodes an unpadded base64url segment. Segments of length
// 2 or 3 mod 4 are padded with "==" or "=" first; other lengths are decoded
// as-is. The standard alphabet is accepted as a fallback.
func DecodeSegment(seg string) ([]byte, error) {
	switch len(seg) % 4 {
	case 2:
		seg += "=="
	case 3:
		seg += "="
	}

	b, err := base64.URLEncoding.DecodeString(seg)
	if err == nil {
		return b, nil
	}
	if b, stdErr := base64.StdEncoding.DecodeString(seg); stdErr == nil {
		return b, nil
	}
	return nil, fmt.Errorf("decode segment: %w", err)
}

// EncodeSegment is the inverse of DecodeSegment, producing unpadded base64url.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// EncodeAccessToken builds an unsigned three-part token carrying claims.
// The dev server issues these; the real backend signs its own.
func EncodeAccessToken(claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	header := EncodeSegment([]byte(`{"alg":"none","typ":"JWT"}`))
	return header + "." + EncodeSegment(payload) + ".", nil
}
