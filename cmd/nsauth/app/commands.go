// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the nsauth command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/networkschool/nsauth/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "nsauth",
	DisableAutoGenTag: true,
	Short:             "OAuth 2.0 / OpenID Connect identity provider",
	Long: `nsauth is the Network School identity provider. It implements the
authorization code flow with PKCE, the client credentials grant, token
introspection and revocation, OIDC discovery, and management APIs for
registered applications.

Primary user authentication is delegated to an external identity broker;
nsauth provisions users just-in-time on first login.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates the root command for the nsauth CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}
