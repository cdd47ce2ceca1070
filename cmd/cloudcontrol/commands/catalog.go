// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ImagesCommand lists the OS and customer images servers can be deployed from.
func ImagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List OS and customer images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			images, err := c.Compute.ListImages(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list images: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tOS\tDATACENTER\tCPU\tMEMORY GB")
			for _, img := range images {
				writeRow(w, []any{img.ID, img.Name, img.OperatingSystem.ID, img.DatacenterID, img.CPU.Count, img.MemoryGB})
			}
			return w.Flush()
		},
	}
}

// LocationsCommand lists the datacenters of the region.
func LocationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List datacenters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			locations, err := c.Compute.ListLocations(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list datacenters: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCITY\tCOUNTRY")
			for _, dc := range locations {
				writeRow(w, []any{dc.ID, dc.DisplayName, dc.City, dc.Country})
			}
			return w.Flush()
		},
	}
}
