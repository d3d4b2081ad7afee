package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/nomdev/corbo/internal/apidate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSegmentPadding(t *testing.T) {
	tests := []struct {
		name    string
		seg     string
		want    string
		wantErr bool
	}{
		{name: "length 2 mod 4 gets two pad chars", seg: "YQ", want: "a"},
		{name: "length 3 mod 4 gets one pad char", seg: "YWI", want: "ab"},
		{name: "length 0 mod 4 passes through", seg: "YWJj", want: "abc"},
		{name: "length 1 mod 4 fails", seg: "YWJjZ", wantErr: true},
		{name: "url alphabet", seg: base64.RawURLEncoding.EncodeToString([]byte{0xfb, 0xff}), want: "\xfb\xff"},
		{name: "standard alphabet fallback", seg: "+/8", want: "\xfb\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSegment(tt.seg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestParseAccessToken(t *testing.T) {
	created := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	raw, err := EncodeAccessToken(Claims{UserID: 7, MinutesTimeout: 60, CreationTime: apidate.New(created)})
	require.NoError(t, err)

	claims, err := ParseAccessToken(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, int64(60), claims.MinutesTimeout)
	assert.True(t, claims.ExpiresAt().Equal(created.Add(time.Hour)))
}

func TestParseAccessTokenRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "two segments", raw: "a.b"},
		{name: "four segments", raw: "a.b.c.d"},
		{name: "payload not base64", raw: "a.!!!.c"},
		{name: "payload not json", raw: "a." + EncodeSegment([]byte("nope")) + ".c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAccessToken(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
