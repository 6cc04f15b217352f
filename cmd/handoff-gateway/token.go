// ABOUTME: token subcommand: issues a signed bearer token for the dialogs API
// ABOUTME: Uses the configured jwt_secret; warns when the id is not staff

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/handoff-gateway/internal/auth"
	"github.com/2389/handoff-gateway/internal/gateway"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <operator-id>",
	Short: "Issue an API token for an operator",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}
	if tokenTTL <= 0 {
		return errors.New("--ttl must be positive")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return err
	}

	operatorID := args[0]
	if !gateway.APIStaff(cfg).IsStaff(operatorID) {
		fmt.Fprintln(stderr, color.YellowString("warning: %s is not in any staff list; the API will reject this token", operatorID))
	}

	token, err := verifier.Generate(operatorID, tokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
