package database

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/google/uuid"
)

func TestApplyClaims(t *testing.T) {
	t.Parallel()

	name := "Ada"
	sub := "sub-1"
	tests := []struct {
		name        string
		user        models.User
		claims      models.JWTClaims
		wantChanged bool
	}{
		{
			name:        "unchanged",
			user:        models.User{Email: "a@b.c", ProviderID: &sub, Name: &name, EmailVerified: true},
			claims:      models.JWTClaims{Sub: "sub-1", Email: "a@b.c", Name: "Ada"},
			wantChanged: false,
		},
		{
			name:        "new picture",
			user:        models.User{Email: "a@b.c", ProviderID: &sub, Name: &name, EmailVerified: true},
			claims:      models.JWTClaims{Sub: "sub-1", Email: "a@b.c", Name: "Ada", Picture: "https://p"},
			wantChanged: true,
		},
		{
			name:        "link local account",
			user:        models.User{Email: "a@b.c"},
			claims:      models.JWTClaims{Sub: "sub-1", Email: "a@b.c"},
			wantChanged: true,
		},
		{
			name:        "blank claims keep profile",
			user:        models.User{Email: "a@b.c", ProviderID: &sub, Name: &name, EmailVerified: true},
			claims:      models.JWTClaims{Sub: "sub-1"},
			wantChanged: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u := tt.user
			if got := applyClaims(&u, &tt.claims); got != tt.wantChanged {
				t.Errorf("applyClaims() = %v, want %v", got, tt.wantChanged)
			}
			if u.ProviderID == nil || *u.ProviderID != tt.claims.Sub {
				t.Errorf("ProviderID = %v, want %q", u.ProviderID, tt.claims.Sub)
			}
			if u.Email != "a@b.c" {
				t.Errorf("Email = %q", u.Email)
			}
		})
	}
}

func TestMigrations_Embedded(t *testing.T) {
	t.Parallel()

	names, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations() error = %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no migrations embedded")
	}
	body, err := schemaFS.ReadFile(names[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"users", "oidc_config", "cors_config", "ratelimit_config"} {
		if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("first migration does not create %s", table)
		}
	}
}

// Runs against a real database when TEST_DATABASE_URL is set.
func TestUserRepository_Integration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := New(url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo := NewUserRepository(db)
	email := "it-" + uuid.NewString() + "@example.com"
	claims := &models.JWTClaims{Sub: "sub-" + uuid.NewString(), Email: email, Name: "First"}

	created, err := repo.UpsertFromClaims(ctx, claims)
	if err != nil {
		t.Fatalf("UpsertFromClaims() error = %v", err)
	}
	defer func() { _ = repo.Delete(ctx, created.ID) }()

	claims.Name = "Second"
	updated, err := repo.UpsertFromClaims(ctx, claims)
	if err != nil {
		t.Fatalf("second UpsertFromClaims() error = %v", err)
	}
	if updated.ID != created.ID || updated.DisplayName() != "Second" {
		t.Errorf("updated = %+v", updated)
	}

	byEmail, err := repo.GetByEmail(ctx, strings.ToUpper(email))
	if err != nil || byEmail.ID != created.ID {
		t.Errorf("GetByEmail() = %+v, %v", byEmail, err)
	}
}
