package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"commentgen/internal/config"
	"commentgen/internal/middleware"
)

func (a *app) tokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadEnv()
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			token, err := middleware.NewJWTAuth(cfg.JWTSecret).GenerateAccessToken(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Client name stored in the token's sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("subject")
	return cmd
}
