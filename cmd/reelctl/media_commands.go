package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelcms/internal/media"
)

func newMediaCommand(ctx *commandContext) *cobra.Command {
	mediaCmd := &cobra.Command{
		Use:   "media",
		Short: "Transcode videos and extract posters with ffmpeg",
	}
	mediaCmd.AddCommand(newMediaStatusCommand(ctx))
	mediaCmd.AddCommand(newMediaIngestCommand(ctx))
	mediaCmd.AddCommand(newMediaPosterCommand(ctx))
	mediaCmd.AddCommand(newMediaNormalizeCommand(ctx))
	return mediaCmd
}

func newMediaStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether ffmpeg is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			st := a.FFmpeg.Status()
			out := cmd.OutOrStdout()
			if st.Available {
				fmt.Fprintf(out, "%s: available (%s)\n", st.Name, st.Command)
			} else {
				fmt.Fprintf(out, "%s: unavailable (%s)\n", st.Name, st.Detail)
			}
			fmt.Fprintf(out, "media folder: %s (served at %s)\n", a.Pipeline.MediaDir(), a.Pipeline.URLPrefix())
			return nil
		},
	}
}

func newMediaIngestCommand(ctx *commandContext) *cobra.Command {
	var posterSec float64
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Transcode a local video or store an image in the media folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if info, err := f.Stat(); err == nil {
				a.Logger.Info("ingesting", slog.String("file", args[0]), slog.String("size", humanize.Bytes(uint64(info.Size()))))
			}

			asset, err := a.Pipeline.Ingest(cmd.Context(), media.Upload{Name: filepath.Base(args[0]), Body: f}, media.ClampSeconds(posterSec))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", asset.Kind, asset.URL)
			if asset.PosterURL != "" {
				fmt.Fprintf(out, "poster: %s\n", asset.PosterURL)
			}
			if asset.PosterError != "" {
				fmt.Fprintf(out, "poster failed: %s\n", asset.PosterError)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&posterSec, "poster-sec", 0, "Offset in seconds of the poster frame")
	return cmd
}

func newMediaPosterCommand(ctx *commandContext) *cobra.Command {
	var sec float64
	cmd := &cobra.Command{
		Use:   "poster <video-url>",
		Short: "Extract a new poster from a video under the public root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			url, err := a.Pipeline.RegeneratePoster(cmd.Context(), args[0], media.ClampSeconds(sec))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().Float64Var(&sec, "sec", 0, "Offset in seconds of the poster frame")
	return cmd
}

func newMediaNormalizeCommand(ctx *commandContext) *cobra.Command {
	var posterSec float64
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Re-encode every work's video to web-friendly MP4 and relink it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			count, err := a.Pipeline.NormalizeStore(cmd.Context(), a.Works, media.ClampSeconds(posterSec))
			fmt.Fprintf(cmd.OutOrStdout(), "normalized %d works\n", count)
			return err
		},
	}
	cmd.Flags().Float64Var(&posterSec, "poster-sec", 0, "Offset in seconds of the poster frames")
	return cmd
}
