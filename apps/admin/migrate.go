package main

import (
	"github.com/spf13/cobra"

	"github.com/William-Pardo/tudojang-sub002/storage/database"
)

var migrateFunc = database.RunMigration // mockable

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command (up, up-to, down, down-to, redo, reset, status, version) on the database",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return migrateFunc(cli.db, cli.conf.Database.Engine, args[0], args[1:]...)
		},
	}
}
