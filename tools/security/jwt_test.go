package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))

	tok, exp, err := Generate(opts, "u42")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(opts.TTL), exp, 5*time.Second)

	sub, err := Verify(opts, tok)
	require.NoError(t, err)
	assert.Equal(t, "u42", sub)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, _, err := Generate(DefaultOptions([]byte("right")), "u1")
	require.NoError(t, err)

	_, err = Verify(DefaultOptions([]byte("wrong")), tok)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrExpired)
}

func TestVerifyExpired(t *testing.T) {
	secret := []byte("secret")
	claims := jwtlib.MapClaims{
		"sub": "u1",
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = Verify(DefaultOptions(secret), tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	secret := []byte("secret")
	claims := jwtlib.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = Verify(DefaultOptions(secret), tok)
	assert.Error(t, err)
}

func TestVerifyRejectsUnsupportedAlg(t *testing.T) {
	_, err := Verify(Options{Secret: []byte("s"), Alg: "RS256"}, "whatever")
	assert.Error(t, err)
}

func TestStripBearer(t *testing.T) {
	assert.Equal(t, "abc", StripBearer("Bearer abc"))
	assert.Equal(t, "abc", StripBearer("bearer abc"))
	assert.Equal(t, "abc", StripBearer("  Bearer   abc  "))
	assert.Equal(t, "abc", StripBearer("abc"))
	assert.Equal(t, "", StripBearer("   "))
}
