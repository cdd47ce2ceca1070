// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/api"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/client"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/paging"
)

const networkDomainFlag = "network-domain"

// NetworkCommand groups the network listing commands.
func NetworkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "List network domains and their contents",
	}

	cmd.AddCommand(domainsCommand())
	cmd.AddCommand(inDomainCommand("vlans", "List the VLANs of a network domain",
		"ID\tNAME\tPRIVATE RANGE\tGATEWAY\tSTATE",
		func(c *client.Client, id string) *paging.Pager[domain.Vlan] { return c.API.Network.ListVlans(id) },
		func(v domain.Vlan) []any {
			return []any{v.ID, v.Name, fmt.Sprintf("%s/%d", v.PrivateIPv4Range.Address, v.PrivateIPv4Range.PrefixSize), v.IPv4GatewayAddress, v.State}
		}))
	cmd.AddCommand(inDomainCommand("ip-blocks", "List the public IPv4 blocks of a network domain",
		"ID\tBASE IP\tSIZE\tSTATE",
		func(c *client.Client, id string) *paging.Pager[domain.PublicIPBlock] {
			return c.API.Network.ListPublicIPv4AddressBlocks(id)
		},
		func(b domain.PublicIPBlock) []any { return []any{b.ID, b.BaseIP, b.Size, b.State} }))
	cmd.AddCommand(inDomainCommand("firewall-rules", "List the firewall rules of a network domain",
		"ID\tNAME\tACTION\tPROTOCOL\tTYPE\tENABLED\tSTATE",
		func(c *client.Client, id string) *paging.Pager[domain.FirewallRule] { return c.API.Network.ListFirewallRules(id) },
		func(r domain.FirewallRule) []any {
			return []any{r.ID, r.Name, r.Action, r.Protocol, r.RuleType, r.Enabled, r.State}
		}))
	cmd.AddCommand(inDomainCommand("nat-rules", "List the NAT rules of a network domain",
		"ID\tINTERNAL IP\tEXTERNAL IP\tSTATE",
		func(c *client.Client, id string) *paging.Pager[domain.NatRule] { return c.API.Network.ListNatRules(id) },
		func(r domain.NatRule) []any { return []any{r.ID, r.InternalIP, r.ExternalIP, r.State} }))

	return cmd
}

func domainsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the organization's network domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			return printTable(cmd, "ID\tNAME\tTYPE\tDATACENTER\tSNAT IPv4\tSTATE",
				c.API.Network.ListNetworkDomains(api.ListOptions{}),
				func(nd domain.NetworkDomain) []any {
					return []any{nd.ID, nd.Name, nd.Type, nd.DatacenterID, nd.SnatIPv4Address, nd.State}
				})
		},
	}
}

// inDomainCommand builds a listing command scoped by --network-domain.
func inDomainCommand[T any](use, short, header string, list func(*client.Client, string) *paging.Pager[T], row func(T) []any) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			networkDomainID, _ := cmd.Flags().GetString(networkDomainFlag)
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			return printTable(cmd, header, list(c, networkDomainID), row)
		},
	}
	cmd.Flags().String(networkDomainFlag, "", "Network domain id")
	_ = cmd.MarkFlagRequired(networkDomainFlag)
	return cmd
}

// printTable writes every item of pager as a tab-aligned row.
func printTable[T any](cmd *cobra.Command, header string, pager *paging.Pager[T], row func(T) []any) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, header)

	n := 0
	for item, err := range pager.Concat(cmd.Context()) {
		if err != nil {
			return err
		}
		writeRow(w, row(item))
		n++
	}
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No resources found.")
		return nil
	}
	return w.Flush()
}

func writeRow(w *tabwriter.Writer, cells []any) {
	for i, cell := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, cell)
	}
	fmt.Fprintln(w)
}
