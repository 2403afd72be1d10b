package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newVersionsCommand(a *app) *cobra.Command {
	var versionsFile string
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Summarise the version database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vdb, err := a.loadVersions(versionsFile)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Entries:  %d (%d distinct sizes)\n", vdb.Len(), vdb.Sizes())
			fmt.Fprintf(w, "Sizes:    %s to %s\n",
				humanize.IBytes(uint64(vdb.MinSize())), humanize.IBytes(uint64(vdb.MaxSize())))
			games := vdb.Games()
			fmt.Fprintf(w, "Games:    %d\n", len(games))
			if len(games) > 0 {
				fmt.Fprintf(w, "          %s\n", strings.Join(games, " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&versionsFile, "versions", "", "version database (versions.js or .yaml); overrides config")
	return cmd
}
