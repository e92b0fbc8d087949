package grpcsvc

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	auth := NewAuthenticator([]byte("secret"))

	token, err := auth.IssueToken(admin, time.Minute)
	require.NoError(t, err)

	p, err := auth.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, admin, p)
}

func TestAuthenticator_Rejects(t *testing.T) {
	auth := NewAuthenticator([]byte("secret"))
	other := NewAuthenticator([]byte("other"))
	foreign, err := other.IssueToken(customer, time.Minute)
	require.NoError(t, err)

	expired := NewAuthenticator([]byte("secret"))
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.IssueToken(customer, time.Minute)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "root",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "admin"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"foreign signature", foreign},
		{"expired", stale},
		{"unknown role", badRole},
		{"no subject", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestAuthenticator_DefaultRoleIsCustomer(t *testing.T) {
	auth := NewAuthenticator([]byte("secret"))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-9"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	p, err := auth.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{UserID: "user-9", Role: domain.RoleCustomer}, p)
}
