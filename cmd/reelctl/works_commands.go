package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelcms/internal/apperr"
	"reelcms/internal/manifest"
	"reelcms/pkg/models"
)

func newWorksCommand(ctx *commandContext) *cobra.Command {
	worksCmd := &cobra.Command{
		Use:   "works",
		Short: "Inspect and edit the works manifest",
	}
	worksCmd.AddCommand(newWorksListCommand(ctx))
	worksCmd.AddCommand(newWorksPublishCommand(ctx, true))
	worksCmd.AddCommand(newWorksPublishCommand(ctx, false))
	worksCmd.AddCommand(newWorksScheduleCommand(ctx))
	worksCmd.AddCommand(newWorksRemoveCommand(ctx))
	worksCmd.AddCommand(newWorksSetCommand(ctx))
	return worksCmd
}

func newWorksListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every work, published or not",
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
			if asJSON {
				return writeJSON(out, works)
			}
			if len(works) == 0 {
				fmt.Fprintln(out, "No works in the manifest")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(works))
			for _, w := range works {
				rows = append(rows, []string{
					w.Slug,
					w.Title,
					string(w.Kind),
					stateLabel(w, now),
					scheduleLabel(w),
					millisLabel(w.UpdatedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Slug", "Title", "Kind", "State", "Scheduled", "Updated"},
				rows, nil,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the manifest as JSON")
	return cmd
}

func stateLabel(w models.Work, now time.Time) string {
	if w.Published == models.Unpublished && w.ScheduledAt != nil && w.ScheduledAt.Valid() && !w.ScheduledAt.Due(now) {
		return "scheduled"
	}
	return w.Published.String()
}

func scheduleLabel(w models.Work) string {
	if w.ScheduledAt == nil {
		return ""
	}
	if !w.ScheduledAt.Valid() {
		return "invalid"
	}
	return humanize.Time(w.ScheduledAt.Time())
}

func millisLabel(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return humanize.Time(time.UnixMilli(ms))
}

func newWorksPublishCommand(ctx *commandContext, publish bool) *cobra.Command {
	use, short := "publish", "Publish works now and clear any pending schedule"
	if !publish {
		use, short = "unpublish", "Hide works from anonymous visitors"
	}
	return &cobra.Command{
		Use:   use + " <slug>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := a.Works.BulkUpdate(cmd.Context(), args, manifest.BulkChange{Published: &publish})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sed %d of %d works\n", use, n, len(args))
			return nil
		},
	}
}

func newWorksScheduleCommand(ctx *commandContext) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "schedule <slug>...",
		Short: "Publish works automatically at a later time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := parseWhen(at)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := a.Works.BulkUpdate(cmd.Context(), args, manifest.BulkChange{ScheduledAt: &ts})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduled %d of %d works for %s\n", n, len(args), ts.Time().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Publish time (RFC 3339, 2006-01-02 15:04 or epoch milliseconds)")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func parseWhen(s string) (models.Timestamp, error) {
	raw, err := json.Marshal(strings.TrimSpace(s))
	if err != nil {
		return models.Timestamp{}, err
	}
	ts := models.ParseTimestamp(raw)
	if !ts.Valid() {
		return models.Timestamp{}, apperr.Validation("schedule", fmt.Sprintf("cannot parse time %q", s))
	}
	return models.TimestampMillis(ts.Millis()), nil
}

func newWorksRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <slug>...",
		Aliases: []string{"remove"},
		Short:   "Delete works from the manifest",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			for _, slug := range args {
				if err := a.Works.Remove(cmd.Context(), slug); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d works\n", len(args))
			return nil
		},
	}
}

func newWorksSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <json>",
		Short: "Create or update one work from a JSON object",
		Example: `  reelctl works set '{"slug":"night-drive","title":"Night Drive","kind":"video","videoSrc":"/movies/night-drive.mp4"}'`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p models.Patch
			if err := json.Unmarshal([]byte(args[0]), &p); err != nil {
				return apperr.Validation("set work", "argument must be a JSON object")
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			w, err := a.Works.Upsert(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", w.Slug, w.Published)
			return nil
		},
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Publish works whose schedule is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			promoted, err := a.Works.Promote(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(promoted) == 0 {
				fmt.Fprintln(out, "No scheduled works are due")
				return nil
			}
			fmt.Fprintf(out, "published %s\n", strings.Join(promoted, ", "))
			return nil
		},
	}
}
