package commands

import (
	"testing"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNormalizeOrigins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"single", "https://app.example.com", "https://app.example.com", false},
		{"dedup and trim", " https://a.example.com , https://a.example.com,http://localhost:3000", "https://a.example.com,http://localhost:3000", false},
		{"wildcard", "*", "*", false},
		{"empty", " , ", "", true},
		{"path", "https://a.example.com/app", "", true},
		{"scheme", "ftp://a.example.com", "", true},
		{"bare host", "a.example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeOrigins(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRate(t *testing.T) {
	t.Parallel()

	got, err := parseRate(" 100-m ")
	require.NoError(t, err)
	assert.Equal(t, "100-M", got)

	for _, bad := range []string{"", "fast", "10-X", "-S"} {
		_, err := parseRate(bad)
		assert.Error(t, err, "rate %q", bad)
	}
}

func TestOIDCInput(t *testing.T) {
	t.Parallel()

	valid := func() oidcInput {
		return oidcInput{
			Provider:    "google",
			Issuer:      "https://accounts.google.com/",
			ClientID:    "client",
			RedirectURI: "http://localhost:8080/auth/oidc/callback",
		}
	}

	t.Run("valid input is normalized", func(t *testing.T) {
		t.Parallel()
		in := valid()
		require.NoError(t, in.validate())
		assert.Equal(t, "https://accounts.google.com", in.Issuer)

		var c models.OIDCConfig
		in.apply(&c)
		assert.Equal(t, "google", c.Provider)
		assert.Nil(t, c.ClientSecret)
		assert.Nil(t, c.JWKSUrl)
	})

	t.Run("secret and jwks override are stored", func(t *testing.T) {
		t.Parallel()
		in := valid()
		in.ClientSecret = "s3cret"
		in.JWKSURL = "https://keys.example.com/jwks.json"
		require.NoError(t, in.validate())

		var c models.OIDCConfig
		in.apply(&c)
		require.NotNil(t, c.ClientSecret)
		assert.Equal(t, "s3cret", *c.ClientSecret)
		require.NotNil(t, c.JWKSUrl)
		assert.Equal(t, "https://keys.example.com/jwks.json", *c.JWKSUrl)
	})

	t.Run("bad provider name", func(t *testing.T) {
		t.Parallel()
		in := valid()
		in.Provider = "Google Workspace"
		err := in.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider name")
	})

	t.Run("missing flags are all reported", func(t *testing.T) {
		t.Parallel()
		in := oidcInput{Provider: "okta"}
		err := in.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--issuer is required")
		assert.Contains(t, err.Error(), "--client-id is required")
		assert.Contains(t, err.Error(), "--redirect-uri is required")
	})
}

func TestNewLocalUser(t *testing.T) {
	t.Parallel()

	user, err := newLocalUser("  Ada@Example.com ", " Ada ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	require.NotNil(t, user.Name)
	assert.Equal(t, "Ada", *user.Name)
	require.NotNil(t, user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte("secret1")))

	noName, err := newLocalUser("bob@example.com", "", "secret1")
	require.NoError(t, err)
	assert.Nil(t, noName.Name)

	_, err = newLocalUser("not-an-email", "", "secret1")
	assert.ErrorContains(t, err, "email")

	_, err = newLocalUser("bob@example.com", "", "short")
	assert.ErrorContains(t, err, "password")
}
