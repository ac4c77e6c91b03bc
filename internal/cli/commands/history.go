package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapidl/internal/cli/output"
	"github.com/leapstack-labs/leapidl/internal/state"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [build-id]",
		Short: "Show recorded builds",
		Long: `List recent builds from the history database, or show the projections of
one build. The database lives in the output directory unless --history is set.`,
		Example: `  leapidl history
  leapidl history --limit 5 --output json
  leapidl history 5b0e3c7e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			path := cc.Cfg.History
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				if len(args) == 1 {
					return fmt.Errorf("%w: %s", state.ErrBuildNotFound, args[0])
				}
				if cc.Renderer.EffectiveMode() == output.ModeJSON {
					return cc.Renderer.JSON([]state.BuildRecord{})
				}
				cc.Renderer.Muted("No builds recorded yet.")
				return nil
			}

			store := state.NewSQLiteStore(cc.Logger)
			if err := store.Open(cmd.Context(), path); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				rec, err := store.GetBuild(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderBuildRecord(cc.Renderer, rec)
			}
			recs, err := store.ListBuilds(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderBuildRecords(cc.Renderer, recs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum builds to list (0 = all)")
	return cmd
}

func renderBuildRecords(r *output.Renderer, recs []state.BuildRecord) error {
	if r.EffectiveMode() == output.ModeJSON {
		if recs == nil {
			recs = []state.BuildRecord{}
		}
		return r.JSON(recs)
	}
	r.Header(1, "Build history")
	if len(recs) == 0 {
		r.Muted("No builds recorded yet.")
		return nil
	}
	rows := make([][]string, len(recs))
	for i, rec := range recs {
		rows[i] = []string{
			rec.ID, string(rec.Status),
			rec.StartedAt.Local().Format(time.DateTime),
			rec.Duration.Round(time.Millisecond).String(),
		}
	}
	r.Table([]string{"ID", "Status", "Started", "Duration"}, rows)
	return nil
}

func renderBuildRecord(r *output.Renderer, rec *state.BuildRecord) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rec)
	}
	r.Header(1, fmt.Sprintf("Build %s", rec.ID))
	r.Println(fmt.Sprintf("Status: %s  Started: %s  Duration: %s",
		rec.Status, rec.StartedAt.Local().Format(time.DateTime), rec.Duration.Round(time.Millisecond)))
	if rec.ConfigPath != "" {
		r.Muted("Config: " + relPath(rec.ConfigPath))
	}
	r.Println("")
	rows := make([][]string, len(rec.Projections))
	for i, p := range rec.Projections {
		rows[i] = []string{
			p.Name, string(p.Status), string(p.FailedAt),
			strconv.Itoa(p.Artifacts), strconv.Itoa(p.Errors), strconv.Itoa(p.Warnings),
			strconv.Itoa(p.PluginErrors), p.Error,
		}
	}
	r.Table([]string{"Projection", "Status", "Failed at", "Artifacts", "Errors", "Warnings", "Plugin errors", "Error"}, rows)
	return nil
}
