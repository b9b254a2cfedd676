/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"threatcache/internal/bootstrap"
	"threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts per collection, type and level",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
		stats, err := app.Service.Stats(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "read stats")
		}
		return writeStats(cmd.OutOrStdout(), stats, statsFormat)
	}),
}

func writeStats(w io.Writer, stats threatintel.Stats, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return writeStatsText(w, stats)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(stats); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(stats)
	default:
		return fmt.Errorf("unsupported format %q (want text, json, yaml or toml)", format)
	}
}

func writeStatsText(w io.Writer, stats threatintel.Stats) error {
	var b strings.Builder
	fmt.Fprintf(&b, "domain_hashes: %d\n", stats.DomainHashes)
	fmt.Fprintf(&b, "url_hashes:    %d\n", stats.URLHashes)
	if stats.LastUpdate != nil {
		fmt.Fprintf(&b, "last_update:   %s\n", stats.LastUpdate.Format(time.RFC3339))
	} else {
		b.WriteString("last_update:   never\n")
	}
	writeFacet(&b, "by type", stats.ByType)
	writeFacet(&b, "by level", stats.ByLevel)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeFacet(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s: %d\n", k, counts[k])
	}
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "text", "Output format: text, json, yaml or toml")
	rootCmd.AddCommand(statsCmd)
}
