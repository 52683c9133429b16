package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/younes-bami/hrcut-app/internal/auth"
)

var (
	tokenSub         string
	tokenUsername    string
	tokenScopes      []string
	tokenPermissions []string
	tokenTTL         time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a session token signed with the configured secret (development)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is not set")
		}
		ttl := cfg.Auth.TokenTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}

		tokens, err := auth.NewTokens(auth.TokenOpts{
			Secret:   []byte(cfg.Auth.JWTSecret),
			TTL:      ttl,
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		})
		if err != nil {
			return err
		}
		signed, err := tokens.Issue(tokenSub, tokenUsername, tokenScopes, tokenPermissions)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSub, "sub", "", "subject (customer id)")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "username claim")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scopes", []string{"customers:read", "customers:write"}, "scopes claim")
	tokenCmd.Flags().StringSliceVar(&tokenPermissions, "permissions", nil, "permissions claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "override auth.token_ttl")
	_ = tokenCmd.MarkFlagRequired("sub")
}
