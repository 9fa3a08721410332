package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/benvon/tagdesk/internal/database"
	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/validation"
	"github.com/spf13/cobra"
)

// oidcInput is the validated form of the oidc command's arguments.
type oidcInput struct {
	Provider     string `validate:"required,provider_name"`
	Issuer       string `validate:"required,url"`
	ClientID     string `validate:"required"`
	ClientSecret string
	RedirectURI  string `validate:"required,url"`
	JWKSURL      string `validate:"omitempty,url"`
}

var oidcInputMessages = map[string]string{
	"Provider.required":      "provider name is required",
	"Provider.provider_name": "provider name must be lowercase letters, digits, '-' or '_' and start with a letter",
	"Issuer.required":        "--issuer is required",
	"Issuer.url":             "--issuer must be a URL",
	"ClientID.required":      "--client-id is required",
	"RedirectURI.required":   "--redirect-uri is required",
	"RedirectURI.url":        "--redirect-uri must be a URL",
	"JWKSURL.url":            "--jwks-url must be a URL",
}

func (in *oidcInput) validate() error {
	in.Provider = strings.TrimSpace(in.Provider)
	in.Issuer = strings.TrimSuffix(strings.TrimSpace(in.Issuer), "/")
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.RedirectURI = strings.TrimSpace(in.RedirectURI)
	in.JWKSURL = strings.TrimSpace(in.JWKSURL)

	err := validation.Validate.Struct(in)
	if err == nil {
		return nil
	}
	fields := validation.FieldMessages(err, oidcInputMessages)
	if fields == nil {
		return err
	}
	msgs := make([]string, 0, len(fields))
	for _, m := range fields {
		msgs = append(msgs, m)
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}

func (in *oidcInput) apply(c *models.OIDCConfig) {
	c.Provider = in.Provider
	c.Issuer = in.Issuer
	c.ClientID = in.ClientID
	c.RedirectURI = in.RedirectURI
	c.ClientSecret = nil
	if in.ClientSecret != "" {
		secret := in.ClientSecret
		c.ClientSecret = &secret
	}
	// Without an override the server uses the discovered jwks_uri.
	c.JWKSUrl = nil
	if in.JWKSURL != "" {
		jwksURL := in.JWKSURL
		c.JWKSUrl = &jwksURL
	}
}

// NewOIDCCmd creates the OIDC configuration command
func NewOIDCCmd() *cobra.Command {
	var in oidcInput
	var remove bool

	cmd := &cobra.Command{
		Use:   "oidc <provider-name>",
		Short: "Configure OIDC provider",
		Long:  "Create or update the identity provider used for single sign-on. Provider name is a short identifier such as 'google' or 'okta'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Provider = args[0]
			if remove {
				return deleteOIDC(in.Provider)
			}
			if err := in.validate(); err != nil {
				return err
			}

			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			// Re-running the command for a stored provider replaces its settings.
			c := &models.OIDCConfig{}
			in.apply(c)
			if err := database.NewOIDCConfigRepository(db).Upsert(context.Background(), c); err != nil {
				return err
			}
			fmt.Printf("Saved OIDC configuration for provider: %s\n", in.Provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Issuer, "issuer", "", "OIDC issuer URL (required)")
	cmd.Flags().StringVar(&in.ClientID, "client-id", "", "OAuth2 client ID (required)")
	cmd.Flags().StringVar(&in.ClientSecret, "client-secret", "", "OAuth2 client secret (optional for public clients)")
	cmd.Flags().StringVar(&in.RedirectURI, "redirect-uri", "", "OAuth2 redirect URI, usually <BASE_URL>/auth/oidc/callback (required)")
	cmd.Flags().StringVar(&in.JWKSURL, "jwks-url", "", "JWKS URL override (optional, defaults to the discovered jwks_uri)")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete the stored provider instead of configuring it")

	return cmd
}

func deleteOIDC(provider string) error {
	db, closeDB, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := database.NewOIDCConfigRepository(db).Delete(context.Background(), provider); err != nil {
		return fmt.Errorf("failed to delete OIDC config: %w", err)
	}
	fmt.Printf("Deleted OIDC configuration for provider: %s\n", provider)
	return nil
}
