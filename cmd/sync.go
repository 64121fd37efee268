package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/mb/internal/apiclient"
	"github.com/marcus/mb/internal/output"
	"github.com/marcus/mb/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync [slug...]",
	Short: "Upload project folders to Markbase",
	Long: `Archive each project's folder and upload it.

With no arguments every project is synced in turn. A project that fails
does not stop the others; the exit status is non-zero if any failed.`,
	Example: `  mb sync
  mb sync tomsblog recipes`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		var notifier syncer.Notifier
		if jsonOut {
			notifier = syncer.NotifierFunc(func(syncer.Level, string) {})
		}
		a, err := newApp(notifier)
		if err != nil {
			return report(err, "")
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.verify(ctx); err != nil {
			return report(err, "")
		}

		var rep syncer.Report
		if len(args) == 0 {
			rep, err = a.syncer.SyncAll(ctx)
			if err != nil {
				// Non-JSON notices were already shown by the manager.
				if jsonOut {
					output.JSONError(string(syncer.Classify(err)), syncer.Describe(err, ""))
				}
				return reportedError{err}
			}
		} else {
			if err := a.registry.Refresh(ctx); err != nil {
				return report(err, "")
			}
			for _, ref := range args {
				p, ok := a.registry.Lookup(ref)
				if !ok {
					output.Error("%s", notFoundMessage(ref, a.registry.Projects()))
					rep.Results = append(rep.Results, syncer.Result{Slug: ref, Err: apiclient.ErrNotFound, Kind: syncer.KindGeneric})
					continue
				}
				rep.Results = append(rep.Results, a.syncer.SyncOneResult(ctx, p))
			}
		}

		if jsonOut {
			if err := output.JSON(syncJSON(rep)); err != nil {
				return err
			}
		} else {
			printReport(rep)
		}
		if !rep.OK() {
			return reportedError{fmt.Errorf("%d of %d projects failed to sync", rep.Failed(), len(rep.Results))}
		}
		return nil
	},
}

type syncResultJSON struct {
	Slug       string `json:"slug"`
	OK         bool   `json:"ok"`
	Kind       string `json:"kind,omitempty"`
	Message    string `json:"message,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func syncJSON(rep syncer.Report) []syncResultJSON {
	out := make([]syncResultJSON, 0, len(rep.Results))
	for _, r := range rep.Results {
		out = append(out, syncResultJSON{
			Slug:       r.Slug,
			OK:         r.OK,
			Kind:       string(r.Kind),
			Message:    syncer.Describe(r.Err, r.Slug),
			DurationMS: r.Duration.Milliseconds(),
		})
	}
	return out
}

func printReport(rep syncer.Report) {
	if len(rep.Results) == 0 {
		output.Info("No projects to sync. Create one with `mb project create`.")
		return
	}
	for _, r := range rep.Results {
		line := fmt.Sprintf("%s %s", output.OutcomeMark(r.OK), r.Slug)
		if r.OK {
			line += fmt.Sprintf("  (%s)", r.Duration.Round(10*time.Millisecond))
		} else if errors.Is(r.Err, apiclient.ErrNotFound) {
			line += "  not found"
		}
		fmt.Println(line)
	}
	if rep.OK() {
		output.Success("Synced %d project(s)", len(rep.Results))
	} else {
		output.Warning("%d of %d project(s) failed", rep.Failed(), len(rep.Results))
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("json", false, "Output results as JSON")
}
