package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/benvon/tagdesk/internal/database"
	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/services/accounts"
	"github.com/spf13/cobra"
)

// passwordEnv lets scripts pass the password without putting it in argv.
const passwordEnv = "TAGDESK_USER_PASSWORD"

// NewUserCmd creates the user command with add and list subcommands.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local users",
		Long:  "Add or list users who sign in with an email and password.",
	}
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

// newLocalUser validates the sign-in fields and hashes the password.
func newLocalUser(email, name, password string) (*models.User, error) {
	form := accounts.SignInForm{Email: email, Password: password}
	form.Normalize()
	if errs := form.Validate(); errs != nil {
		if msg, ok := errs["email"]; ok {
			return nil, fmt.Errorf("email: %s", msg)
		}
		return nil, fmt.Errorf("password: %s", errs["password"])
	}

	hash, err := accounts.HashPassword(form.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Email: form.Email, PasswordHash: &hash}
	if name = strings.TrimSpace(name); name != "" {
		user.Name = &name
	}
	return user, nil
}

func newUserAddCmd() *cobra.Command {
	var name, password string
	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Add or reset a local user",
		Long:  "Create a password user, or set a new password for an existing one. The password comes from --password or " + passwordEnv + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			user, err := newLocalUser(args[0], name, password)
			if err != nil {
				return err
			}

			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			repo := database.NewUserRepository(db)
			ctx := context.Background()

			existing, err := repo.GetByEmail(ctx, user.Email)
			if err == nil && existing != nil {
				existing.PasswordHash = user.PasswordHash
				if user.Name != nil {
					existing.Name = user.Name
				}
				if err := repo.Update(ctx, existing); err != nil {
					return fmt.Errorf("failed to update user: %w", err)
				}
				fmt.Printf("Updated user: %s\n", existing.Email)
				return nil
			}

			if err := repo.Create(ctx, user); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			fmt.Printf("Created user: %s\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (optional)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set "+passwordEnv+")")
	return cmd
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			users, err := database.NewUserRepository(db).List(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			if len(users) == 0 {
				fmt.Println("No users")
				return nil
			}
			for _, u := range users {
				kind := "sso"
				if u.PasswordHash != nil {
					kind = "password"
				}
				fmt.Printf("  - %s (%s, %s)\n", u.Email, u.DisplayName(), kind)
			}
			return nil
		},
	}
}
