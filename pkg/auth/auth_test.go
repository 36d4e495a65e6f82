package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hmacKeys(t *testing.T, active string, ids ...string) *KeySet {
	t.Helper()
	var keys []Key
	for _, id := range ids {
		k, err := LoadKey(KeySource{ID: id, Algorithm: HS256, Secret: "secret-" + id})
		require.NoError(t, err)
		keys = append(keys, k)
	}
	ks, err := NewKeySet(active, keys...)
	require.NoError(t, err)
	return ks
}

func TestJWT_RoundTrip(t *testing.T) {
	j := NewJWT(hmacKeys(t, "k1", "k1"), WithIssuer("memra"))

	token, err := j.Issue(7)
	require.NoError(t, err)

	p, err := j.Authenticate("Bearer " + token)
	require.NoError(t, err)
	id, ok := p.ID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, "user:7", p.String())
}

func TestJWT_Errors(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	keys := hmacKeys(t, "k1", "k1")
	j := NewJWT(keys, WithClock(clock), WithTTL(time.Hour))

	token, err := j.Issue(3)
	require.NoError(t, err)

	t.Run("missing", func(t *testing.T) {
		p, err := j.Authenticate("")
		assert.ErrorIs(t, err, ErrMissing)
		assert.True(t, p.IsGuest())
	})

	t.Run("not bearer", func(t *testing.T) {
		_, err := j.Authenticate("Basic abc")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := j.Authenticate("Bearer not.a.token")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJWT(keys, WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
		_, err := later.Authenticate("Bearer " + token)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("unknown key", func(t *testing.T) {
		other := NewJWT(hmacKeys(t, "k2", "k2"), WithClock(clock))
		_, err := other.Authenticate("Bearer " + token)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		strict := NewJWT(keys, WithClock(clock), WithIssuer("elsewhere"))
		_, err := strict.Authenticate("Bearer " + token)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestJWT_Rotation(t *testing.T) {
	old := NewJWT(hmacKeys(t, "k1", "k1"))
	token, err := old.Issue(11)
	require.NoError(t, err)

	rotated := NewJWT(hmacKeys(t, "k2", "k1", "k2"))
	p, err := rotated.Authenticate("Bearer " + token)
	require.NoError(t, err)
	id, _ := p.ID()
	assert.Equal(t, int64(11), id)

	fresh, err := rotated.Issue(12)
	require.NoError(t, err)
	_, err = old.Authenticate("Bearer " + fresh)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLoadKey_EdDSA(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ed25519.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))

	key, err := LoadKey(KeySource{ID: "ed", Algorithm: EdDSA, PrivateKeyFile: path})
	require.NoError(t, err)
	ks, err := NewKeySet("ed", key)
	require.NoError(t, err)

	j := NewJWT(ks)
	token, err := j.Issue(5)
	require.NoError(t, err)
	p, err := j.Authenticate("Bearer " + token)
	require.NoError(t, err)
	id, _ := p.ID()
	assert.Equal(t, int64(5), id)
}

func TestLoadKey_Errors(t *testing.T) {
	_, err := LoadKey(KeySource{ID: "a", Algorithm: HS256})
	assert.Error(t, err)
	_, err = LoadKey(KeySource{ID: "a", Algorithm: "none"})
	assert.Error(t, err)
	_, err = LoadKey(KeySource{ID: "a", Algorithm: RS256})
	assert.Error(t, err)

	verifyOnly := Key{ID: "v", Algorithm: HS256, Verify: []byte("x")}
	_, err = NewKeySet("v", verifyOnly)
	assert.Error(t, err, "active key must be able to sign")
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	j := NewJWT(hmacKeys(t, "k1", "k1"))
	token, err := j.Issue(9)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Middleware(j, nil))
	r.GET("/who", func(c *gin.Context) {
		c.String(http.StatusOK, FromContext(c).String())
	})

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"guest", "", http.StatusOK, "guest"},
		{"user", "Bearer " + token, http.StatusOK, "user:9"},
		{"bad token", "Bearer nope", http.StatusForbidden, `{"error":"denied"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}
