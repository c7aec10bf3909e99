package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/noah-isme/izin-asrama-api/internal/dto"
	"github.com/noah-isme/izin-asrama-api/internal/models"
	"github.com/noah-isme/izin-asrama-api/internal/service"
	"github.com/noah-isme/izin-asrama-api/pkg/config"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		name   string
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Env == config.EnvProduction {
				return fmt.Errorf("refusing to issue tokens with ENV=%s", cfg.Env)
			}
			if ttl <= 0 {
				ttl = cfg.JWT.Expiration
			}
			tokens := service.NewTokenService(service.TokenConfig{
				Secret: cfg.JWT.Secret,
				Issuer: cfg.JWT.Issuer,
				Expiry: ttl,
			}, validator.New())
			signed, expiresAt, err := tokens.Issue(dto.IssueTokenRequest{
				UserID:   userID,
				Role:     models.UserRole(strings.ToUpper(role)),
				FullName: name,
				Email:    email,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"token":     signed,
				"expiresAt": expiresAt,
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID placed in the token (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleWaliSantri), "SUPERADMIN, NDALEM, USTADZAH or WALI_SANTRI")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_EXPIRATION)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
