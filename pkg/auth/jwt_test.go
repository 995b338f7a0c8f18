package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	id := uuid.New()

	token, err := m.GenerateToken(id, "Rider", "delivery")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, id.String(), claims.Subject)
	assert.Equal(t, "Rider", claims.Name)
	assert.Equal(t, "delivery", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager("a", time.Hour).GenerateToken(uuid.New(), "x", "customer")
	require.NoError(t, err)

	_, err = NewJWTManager("b", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestValidateRejectsExpired(t *testing.T) {
	token, err := NewJWTManager("s", -time.Minute).GenerateToken(uuid.New(), "x", "customer")
	require.NoError(t, err)

	_, err = NewJWTManager("s", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateToleratesSmallSkew(t *testing.T) {
	m := NewJWTManager("s", time.Hour)
	m.now = func() time.Time { return time.Now().Add(-time.Hour - 10*time.Second) }
	token, err := m.GenerateToken(uuid.New(), "x", "customer")
	require.NoError(t, err)

	_, err = NewJWTManager("s", time.Hour).ValidateToken(token)
	assert.NoError(t, err)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := foreign.SignedString([]byte("s"))
	require.NoError(t, err)
	_, err = NewJWTManager("s", time.Hour).ValidateToken(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err = noUser.SignedString([]byte("s"))
	require.NoError(t, err)
	_, err = NewJWTManager("s", time.Hour).ValidateToken(signed)
	assert.ErrorIs(t, err, ErrNoSubject)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{UserID: uuid.New()})
	signed, err = hs512.SignedString([]byte("s"))
	require.NoError(t, err)
	_, err = NewJWTManager("s", time.Hour).ValidateToken(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = BearerToken("bearer   xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Basic abc", "Bearer", "Bearer  "} {
		_, err := BearerToken(h)
		assert.ErrorIs(t, err, ErrMissingBearer, h)
	}
}
