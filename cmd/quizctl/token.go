package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quizgram/internal/config"
	"quizgram/internal/service"
)

func tokenCmd(cfg *config.Config) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Long:  `Sign an access token for --user with JWT_SECRET. Export it as ACCESS_TOKEN.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := service.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenMaxAge).Issue(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User id to put in the token")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
