// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ServerCommand groups the server commands.
func ServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "List and destroy servers",
	}

	cmd.AddCommand(serverListCommand())
	cmd.AddCommand(serverDestroyCommand())

	return cmd
}

func serverListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			networkDomainID, _ := cmd.Flags().GetString(networkDomainFlag)
			c, err := newClient(cmd)
			if err != nil {
				return err
			}

			nodes, err := c.Compute.ListNodes(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list servers: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tGROUP\tSTATUS\tDATACENTER\tPRIVATE IPv4\tIMAGE")
			n := 0
			for _, node := range nodes {
				if networkDomainID != "" && node.Server.NetworkInfo.NetworkDomainID != networkDomainID {
					continue
				}
				writeRow(w, []any{node.ID, node.Name, node.Group, node.Status, node.LocationID,
					strings.Join(node.PrivateAddresses, ","), node.ImageID})
				n++
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No servers found.")
				return nil
			}
			return w.Flush()
		},
	}
	cmd.Flags().String(networkDomainFlag, "", "Only list servers in this network domain")
	return cmd
}

func serverDestroyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <server-id>...",
		Short: "Destroy servers together with their NAT and firewall rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			log := logr.FromContextOrDiscard(cmd.Context())

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(4)
			for _, id := range args {
				g.Go(func() error {
					if err := c.Compute.DestroyNode(ctx, id); err != nil {
						return fmt.Errorf("failed to destroy server %s: %w", id, err)
					}
					log.V(1).Info("destroyed", "serverId", id)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Destroyed %d server(s).\n", len(args))
			return nil
		},
	}
}
