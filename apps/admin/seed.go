package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
)

type (
	// seedFile is the TOML layout of `admin seed`:
	//
	//	[[tenants]]
	//	slug = "norte"
	//	name = "Club Norte"
	//	logo = "logos/norte.png" # relative to the seed file
	//	  [[tenants.sites]]
	//	  name = "Sede Principal"
	seedFile struct {
		Tenants []seedTenant `toml:"tenants"`
	}

	seedTenant struct {
		tenant.NewTenant
		Sites []tenant.NewSite `toml:"sites"`
	}
)

func (cli *commandLine) seedCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the tenants & sites of a TOML file; existing tenants are skipped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				_ = cmd.Help()
				return errHelp
			}
			created, err := cli.seed(path)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "%d tenant(s) created\n", created)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "path to the TOML seed file")
	return cmd
}

func (cli *commandLine) seed(path string) (int, error) {
	var data seedFile
	if _, err := toml.DecodeFile(path, &data); err != nil {
		return 0, errors.Wrap(err, "decoding seed file")
	}

	ctx := context.Background()
	var created int
	for i := range data.Tenants {
		st := data.Tenants[i]
		if err := st.Validate(cli.validate); err != nil {
			return created, errors.Wrapf(err, "tenant #%d", i+1)
		}
		if _, err := cli.tenantSvc.GetBySlug(ctx, st.Slug); err == nil {
			_, _ = fmt.Fprintf(cli.out, "tenant %q exists, skipped\n", st.Slug)
			continue
		} else if !core.IsNotFound(err) {
			return created, err
		}

		var logo []byte
		if st.LogoPath != "" {
			logoPath := st.LogoPath
			if !filepath.IsAbs(logoPath) {
				logoPath = filepath.Join(filepath.Dir(path), logoPath)
			}
			var err error
			if logo, err = os.ReadFile(logoPath); err != nil {
				return created, errors.Wrapf(err, "reading logo of %q", st.Slug)
			}
		}

		t, err := cli.tenantSvc.Create(ctx, st.NewTenant, logo)
		if err != nil {
			return created, errors.Wrapf(err, "creating tenant %q", st.Slug)
		}
		for j := range st.Sites {
			ns := st.Sites[j]
			if err := ns.Validate(cli.validate); err != nil {
				return created, errors.Wrapf(err, "site #%d of %q", j+1, st.Slug)
			}
			if _, err := cli.tenantSvc.CreateSite(ctx, t.ID, ns); err != nil {
				return created, errors.Wrapf(err, "creating site %q", ns.Name)
			}
		}
		created++
	}
	return created, nil
}
