// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package commands implements the cloudcontrol operator CLI.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/client"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/config"
)

// NewRootCommand returns the cloudcontrol command tree.
func NewRootCommand() *cobra.Command {
	var verbosity int

	cmd := &cobra.Command{
		Use:   "cloudcontrol",
		Short: "Inspect and clean up CloudControl resources",
		Long: `cloudcontrol is an operator tool for the CloudControl organization a formae
target points at. It lists network domains and their contents, servers,
images and datacenters, and destroys servers together with their NAT and
firewall rules.

Credentials are read from CLOUDCONTROL_USERNAME and CLOUDCONTROL_PASSWORD.

Quick start:
  cloudcontrol --region na network domains
  cloudcontrol network vlans --network-domain <id>
  cloudcontrol server destroy <id>`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			stdr.SetVerbosity(verbosity)
			logger := stdr.New(log.New(cmd.ErrOrStderr(), "", log.LstdFlags)).WithName("cloudcontrol")
			cmd.SetContext(logr.NewContext(cmd.Context(), logger))
		},
	}

	cmd.PersistentFlags().String("region", "", "CloudControl region (na, eu, au, ap, af, ...); defaults to $"+config.EnvRegion)
	cmd.PersistentFlags().String("org-id", "", "Organization id; looked up from the account when empty")
	cmd.PersistentFlags().String("endpoint", "", "API endpoint overriding the regional one")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity")

	cmd.AddCommand(NetworkCommand())
	cmd.AddCommand(ServerCommand())
	cmd.AddCommand(ImagesCommand())
	cmd.AddCommand(LocationsCommand())

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newClient builds a client from the persistent flags and the environment.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	target := map[string]string{}
	for flag, key := range map[string]string{"region": "region", "org-id": "orgId", "endpoint": "endpoint"} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			target[key] = v
		}
	}
	raw, err := json.Marshal(target)
	if err != nil {
		return nil, err
	}

	cfg, err := config.FromTargetConfig(raw)
	if err != nil {
		return nil, err
	}
	c, err := client.NewClient(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return c, nil
}
