package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/socialrelay/internal/adapters/driving/httpapi"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user",
	Long: `Signs a bearer token for the given user with the configured JWT secret.
Useful for local testing of the HTTP API; production tokens are issued by the
host application.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	auth := appConfig.Auth
	if auth.JWTSecret == "" {
		return errors.New("jwt secret is not configured")
	}
	if tokenTTL <= 0 {
		return errors.New("--ttl must be positive")
	}

	token, err := httpapi.NewAuthenticator(auth.JWTSecret, auth.JWTIssuer, auth.JWTAudience).
		Issue(args[0], tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
