/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"io"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the feed document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return errs.Wrap(writeFeedSchema(cmd.OutOrStdout()), "write schema")
	},
}

func feedSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect([]threatintel.FeedEntry{})
	s.Title = "threatcache feed"
	s.Description = "Top-level array of blocklist entries. Malformed entries are skipped on ingestion."
	return s
}

func writeFeedSchema(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(feedSchema())
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
