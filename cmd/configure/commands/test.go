package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tagdesk/internal/database"
	"github.com/benvon/tagdesk/internal/services/oidc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test OIDC configuration",
		Long:  "Test a stored identity provider by fetching its discovery document and signing keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				return fmt.Errorf("--provider is required")
			}

			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			c, err := database.NewOIDCConfigRepository(db).GetByProvider(ctx, provider)
			if err != nil {
				return fmt.Errorf("failed to get OIDC config: %w", err)
			}

			fmt.Printf("Testing OIDC configuration for provider: %s\n", provider)
			fmt.Printf("Issuer: %s\n", c.Issuer)

			client := oidc.NewHTTPClient(zap.NewNop())
			d, err := oidc.Discover(ctx, client, c.Issuer)
			if err != nil {
				return err
			}
			fmt.Println("✓ Discovery document is valid")
			fmt.Printf("  Authorization endpoint: %s\n", d.AuthorizationEndpoint)
			fmt.Printf("  Token endpoint: %s\n", d.TokenEndpoint)

			jwksURL := d.JWKSURI
			if c.JWKSUrl != nil && *c.JWKSUrl != "" {
				jwksURL = *c.JWKSUrl
			}
			fmt.Printf("\nTesting JWKS endpoint: %s\n", jwksURL)
			set, err := oidc.NewJWKSManager(client).GetJWKS(ctx, jwksURL)
			if err != nil {
				return fmt.Errorf("failed to load JWKS: %w", err)
			}
			fmt.Printf("✓ JWKS endpoint returned %d key(s)\n", set.Len())

			fmt.Println("\n✓ OIDC configuration test passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider name to test (required)")

	return cmd
}
