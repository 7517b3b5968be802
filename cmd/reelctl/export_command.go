package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelcms/pkg/models"
)

// csvColumns is the column order of exported and imported CSV files.
var csvColumns = []string{
	"slug", "title", "kind", "published", "scheduledAt",
	"videoSrc", "imageSrc", "poster", "cats", "clientName", "projectType",
	"createdAt", "updatedAt",
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the manifest as CSV or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			works, err := a.Works.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return err
				}
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			switch strings.ToLower(format) {
			case "csv":
				err = writeCSV(out, works)
			case "json":
				err = writeJSON(out, works)
			default:
				return fmt.Errorf("export: unsupported format %q (use csv or json)", format)
			}
			if err != nil {
				return fmt.Errorf("export works: %w", err)
			}
			if outPath != "" && outPath != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d works to %s\n", len(works), outPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format: csv or json")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(out io.Writer, works []models.Work) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvColumns); err != nil {
		return err
	}
	for _, work := range works {
		published := ""
		if work.Published != models.PublishUnspecified {
			published = strconv.FormatBool(work.Published == models.Published)
		}
		scheduled := ""
		if work.ScheduledAt != nil && work.ScheduledAt.Valid() {
			scheduled = strconv.FormatInt(work.ScheduledAt.Millis(), 10)
		}
		if err := w.Write([]string{
			work.Slug,
			work.Title,
			string(work.Kind),
			published,
			scheduled,
			work.VideoSrc,
			work.ImageSrc,
			work.Poster,
			strings.Join(work.Cats.Tags(), " "),
			work.ClientName,
			work.ProjectType,
			formatMillis(work.CreatedAt),
			formatMillis(work.UpdatedAt),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return strconv.FormatInt(ms, 10)
}
