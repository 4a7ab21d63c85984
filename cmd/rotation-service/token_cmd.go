package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/urpt/student-rotation-service/internal/auth"
	"github.com/urpt/student-rotation-service/internal/models"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		name   string
		email  string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			user := &models.User{ID: userID, FullName: name, Email: email, Role: models.UserRole(role)}
			if !user.Role.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer).GenerateToken(user, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Subject of the token (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&role, "role", string(models.RoleRecruiter), "administrator, recruiter or subscriber")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
