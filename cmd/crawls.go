package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newCrawlsCmd lists the crawls published in the index catalog.
func newCrawlsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawls",
		Short: "List the crawls available in the index catalog",
		Long: `Prints the index catalog, newest first as published, so crawl ids can be
passed to -c/--crawls.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			defer appInstance.Close()

			crawls, err := appInstance.ListCrawls(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCDX API")
			for _, c := range crawls {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.CDXAPI)
			}
			if err := tw.Flush(); err != nil {
				return fmt.Errorf("write crawl list: %w", err)
			}
			return nil
		},
	}
}
