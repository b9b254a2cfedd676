/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"threatcache/internal/bootstrap"
	"threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check <url>...",
	Short: "Look up one or more URLs in the local dataset",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		out := cmd.OutOrStdout()
		for _, raw := range args {
			v := app.Service.CheckURLSecurity(cmd.Context(), raw)
			if err := writeVerdict(out, raw, v, checkJSON); err != nil {
				return errs.Wrap(err, "write check output")
			}
		}
		return nil
	}),
}

var (
	verdictLabel = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	maliciousTag = verdictLabel.Foreground(lipgloss.Color("15")).Background(lipgloss.Color("160"))
	trustedTag   = verdictLabel.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("42"))
	unknownTag   = verdictLabel.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("250"))
	detailStyle  = lipgloss.NewStyle().Faint(true)
)

func writeVerdict(w io.Writer, raw string, v threatintel.Verdict, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(struct {
			URL    string `json:"url"`
			Status string `json:"status"`
			threatintel.Verdict
		}{URL: raw, Status: v.Status(), Verdict: v})
	}

	_, err := fmt.Fprintln(w, renderVerdict(raw, v))
	return err
}

func renderVerdict(raw string, v threatintel.Verdict) string {
	var tag lipgloss.Style
	switch v.Status() {
	case threatintel.StatusMalicious:
		tag = maliciousTag
	case threatintel.StatusTrusted:
		tag = trustedTag
	default:
		tag = unknownTag
	}

	parts := []string{tag.Render(strings.ToUpper(v.Status())), raw}
	if v.Status() == threatintel.StatusMalicious {
		parts = append(parts, detailStyle.Render(fmt.Sprintf("type=%d level=%d match=%d", v.Type, v.Level, v.Match)))
	}
	if v.Error != "" {
		parts = append(parts, detailStyle.Render("error: "+v.Error))
	}
	return strings.Join(parts, " ")
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print verdicts as JSON lines")
	rootCmd.AddCommand(checkCmd)
}
