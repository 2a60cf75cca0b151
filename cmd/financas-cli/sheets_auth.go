package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gsheet "financas/internal/sheets/google"
)

const (
	keyOAuthClient = "google_oauth_client_file"
	keyOAuthToken  = "google_oauth_token_file"
	keyOAuthPort   = "oauth_redirect_port"
)

func sheetsAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize the journal worker to write to Google Sheets with your account",
		Long: `Runs the OAuth consent flow for an installed-app client and saves the
resulting token. Point the worker at it with GOOGLE_OAUTH_CLIENT_FILE and
GOOGLE_OAUTH_TOKEN_FILE instead of service account credentials.

The client's authorized redirect URIs must include
http://localhost:<port>/callback.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientFile := viper.GetString(keyOAuthClient)
			if clientFile == "" {
				return fmt.Errorf("set --client or GOOGLE_OAUTH_CLIENT_FILE")
			}
			cfg, err := gsheet.OAuthConfig(clientFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tok, err := gsheet.Authorize(cmd.Context(), cfg, viper.GetString(keyOAuthPort), out)
			if err != nil {
				return err
			}

			tokenFile := viper.GetString(keyOAuthToken)
			if err := gsheet.SaveToken(tokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintln(out, successStyle.Render("Saved token to "+tokenFile))
			return nil
		},
	}

	cmd.Flags().String("client", "", "OAuth client JSON file")
	cmd.Flags().String("token", "token.json", "where to write the token")
	cmd.Flags().String("port", "8085", "local port for the OAuth redirect")
	_ = viper.BindPFlag(keyOAuthClient, cmd.Flags().Lookup("client"))
	_ = viper.BindPFlag(keyOAuthToken, cmd.Flags().Lookup("token"))
	_ = viper.BindPFlag(keyOAuthPort, cmd.Flags().Lookup("port"))
	return cmd
}
