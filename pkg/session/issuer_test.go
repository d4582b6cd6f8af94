package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Suhaibinator/GOAuthRelay/pkg/auth"
)

var testProfile = auth.Profile{
	Subject:   "108123456789",
	Email:     "user@example.com",
	Name:      "Test User",
	AvatarURL: "https://lh3.example.com/photo.jpg",
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret", 0)

	token, err := issuer.Issue(testProfile)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, testProfile, got)
}

func TestVerifyExpiredToken(t *testing.T) {
	// A negative lifetime mints a token whose expiry is already in the past.
	issuer := NewIssuer("test-secret", -time.Hour)

	token, err := issuer.Issue(testProfile)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestVerifyForeignSecret(t *testing.T) {
	token, err := NewIssuer("other-secret", 0).Issue(testProfile)
	require.NoError(t, err)

	_, err = NewIssuer("test-secret", 0).Verify(token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	issuer := NewIssuer("test-secret", 0)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := issuer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalid, "token %q", token)
	}
}

func TestExpiryUsesIssuerClock(t *testing.T) {
	issuer := NewIssuer("test-secret", 0)
	token, err := issuer.Issue(testProfile)
	require.NoError(t, err)

	// 29 days later the token still verifies; 31 days later it is expired.
	issuer.now = func() time.Time { return time.Now().Add(29 * 24 * time.Hour) }
	_, err = issuer.Verify(token)
	assert.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestFromAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "missing", header: "", wantErr: ErrMissing},
		{name: "wrong prefix", header: "Token xyz", wantErr: ErrMalformedHeader},
		{name: "prefix only", header: "Bearer ", wantErr: ErrMalformedHeader},
		{name: "lowercase prefix", header: "bearer xyz", wantErr: ErrMalformedHeader},
		{name: "ok", header: "Bearer xyz", want: "xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAuthorization(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
