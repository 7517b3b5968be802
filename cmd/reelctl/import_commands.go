package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelcms/internal/apperr"
	"reelcms/internal/catalog"
	"reelcms/pkg/models"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Build manifest entries from the media folder or a CSV file",
	}
	importCmd.AddCommand(newImportMoviesCommand(ctx))
	importCmd.AddCommand(newImportCSVCommand(ctx))
	return importCmd
}

func newImportMoviesCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var unpublished bool
	cmd := &cobra.Command{
		Use:   "movies",
		Short: "Create one work per video in the media folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := catalog.ParseImportMode(mode)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := a.Catalog.Import(cmd.Context(), m, !unpublished)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported from %s (%s): manifest now has %d works\n", a.Scanner.Dir, m, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "replace", "replace the manifest or merge into it")
	cmd.Flags().BoolVar(&unpublished, "unpublished", false, "Import new works as unpublished")
	return cmd
}

func newImportCSVCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "csv <file>",
		Short: "Create or update works from a CSV file written by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			patches, err := readCSVPatches(f)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			for i, p := range patches {
				if _, err := a.Works.Upsert(cmd.Context(), p); err != nil {
					return fmt.Errorf("row %d: %w", i+2, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "upserted %d works from %s\n", len(patches), args[0])
			return nil
		},
	}
}

// readCSVPatches turns each data row into a patch holding only the
// non-empty cells. Timestamps managed by the store are ignored.
func readCSVPatches(r io.Reader) ([]models.Patch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.Validation("import csv", "file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var out []models.Patch
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		p := models.Patch{}
		for i, cell := range rec {
			if i >= len(header) {
				break
			}
			cell = strings.TrimSpace(cell)
			key := header[i]
			if cell == "" || key == "createdAt" || key == "updatedAt" {
				continue
			}
			raw, err := csvValue(key, cell)
			if err != nil {
				return nil, apperr.Validation("import csv", fmt.Sprintf("row %d: %s: %v", line, key, err))
			}
			p[key] = raw
		}
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func csvValue(key, cell string) (json.RawMessage, error) {
	switch key {
	case "published", "pinHero":
		b, err := strconv.ParseBool(cell)
		if err != nil {
			return nil, err
		}
		return json.Marshal(b)
	case "scheduledAt":
		if ms, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return json.Marshal(ms)
		}
		return json.Marshal(cell)
	case "thumbSec":
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, err
		}
		return json.Marshal(f)
	default:
		return json.Marshal(cell)
	}
}
