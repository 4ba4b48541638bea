package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/William-Pardo/tudojang-sub002/core/tenant"
)

func (cli *commandLine) repairSitesCommand() *cobra.Command {
	var tenantSlug string

	cmd := &cobra.Command{
		Use:   "repair-sites",
		Short: "Delete the ghost sites (blank or duplicated names) of a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := cli.repairSites(tenantSlug)
			if err != nil {
				return err
			}
			for _, s := range removed {
				_, _ = fmt.Fprintf(cli.out, "removed site %s (%q)\n", s.ID, s.Name)
			}
			_, _ = fmt.Fprintf(cli.out, "%d site(s) removed\n", len(removed))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "the tenant slug (default tenant if empty)")
	return cmd
}

func (cli *commandLine) repairSites(tenantSlug string) ([]tenant.Site, error) {
	ctx := context.Background()
	t, err := cli.tenantBySlug(ctx, tenantSlug)
	if err != nil {
		return nil, errors.Wrap(err, "finding tenant")
	}
	return cli.tenantSvc.RepairGhostSites(ctx, t.ID)
}
