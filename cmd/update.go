/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"threatcache/internal/bootstrap"
	"threatcache/internal/errs"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch the feed and rebuild the local dataset now",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
		summary, err := app.Service.UpdateDatabase(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "update database")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "updated: %d records at %s\n", summary.Count, summary.Timestamp.Format(time.RFC3339))
		return errs.Wrap(err, "write update output")
	}),
}

var checkUpdateCmd = &cobra.Command{
	Use:   "check-update",
	Short: "Update the dataset only if it is older than feed.staleness",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
		res, err := app.Service.CheckForUpdate(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "check for update")
		}
		out := cmd.OutOrStdout()
		if res.Updated {
			_, err = fmt.Fprintf(out, "updated: %d records at %s\n", res.Summary.Count, res.Summary.Timestamp.Format(time.RFC3339))
		} else {
			_, err = fmt.Fprintf(out, "up to date: last update %s\n", res.LastUpdate.Format(time.RFC3339))
		}
		return errs.Wrap(err, "write check-update output")
	}),
}

func init() {
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(checkUpdateCmd)
}
