package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"appsuite/internal/auth"
	"appsuite/internal/config"
	"appsuite/internal/models"
)

// tokenCmd prints a signed access token. Meant for local development.
func tokenCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed JWT for a user id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user-id")
			role, _ := cmd.Flags().GetString("role")
			email, _ := cmd.Flags().GetString("email")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if _, err := uuid.Parse(userID); err != nil {
				return fmt.Errorf("--user-id must be a UUID: %w", err)
			}
			if role != models.RoleUser && role != models.RoleAdmin {
				return fmt.Errorf("--role must be %q or %q", models.RoleUser, models.RoleAdmin)
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			if len(cfg.JWTSecret) < 16 {
				return errors.New("JWT_SECRET must be set to at least 16 bytes")
			}

			issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
			token, exp, err := issuer.IssueWithTTL(userID, email, role, ttl)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("user-id", "", "Subject of the token (required)")
	cmd.Flags().String("role", models.RoleUser, "Role claim: user or admin")
	cmd.Flags().String("email", "", "Optional email claim")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
