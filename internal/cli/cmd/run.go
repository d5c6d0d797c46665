package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"av1conv/internal/dirs"
	"av1conv/internal/history"
	"av1conv/internal/metrics"
	"av1conv/internal/model"
	"av1conv/internal/pipeline"
	"av1conv/internal/progress"
	"av1conv/internal/ui"
	"av1conv/internal/util/deps"
)

type runMode struct {
	ForceTUI bool
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "run [paths...]",
		Short:         "Convert files or directories to AV1",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{})
		},
	}
	bindRunFlags(cmd.Flags())
	return cmd
}

func runExecute(cmd *cobra.Command, args []string, mode runMode) error {
	ctx := cmd.Context()
	a := appFrom(cmd)

	items, err := a.queue(cmd.Flags(), args)
	if err != nil {
		return err
	}
	sess, err := a.prepare(ctx)
	if err != nil {
		return err
	}
	if a.cfg.Quality.VMAFEnabled && !deps.HasFilter(ctx, a.runner, sess.ffmpeg, "libvmaf") {
		a.log.Warn("ffmpeg has no libvmaf filter; every source will be kept")
	}

	var collector *metrics.Collector
	var opts []pipeline.Option
	if a.cfg.Metrics.Textfile != "" {
		collector = metrics.New(sess.detection.Kind)
		opts = append(opts, pipeline.WithObserver(collector))
	}

	noUI, _ := cmd.Flags().GetBool("no-ui")
	useTUI := mode.ForceTUI || (!noUI && isTerminal())

	var sum model.RunSummary
	if useTUI {
		if err := a.quietLogs(); err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		title := fmt.Sprintf("av1conv • %s • %d files", sess.detection.Kind.DisplayName(), len(items))
		sum, err = ui.Run(ctx, title, items, func(ctx context.Context, rp progress.Reporter) model.RunSummary {
			return a.coordinator(sess, append(opts, pipeline.WithReporter(rp))...).Run(ctx, items)
		})
		if err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
	} else {
		rep := newTextReporter(cmd.OutOrStdout(), len(items))
		sum = a.coordinator(sess, append(opts, pipeline.WithReporter(rep))...).Run(ctx, items)
	}

	printSummary(cmd.OutOrStdout(), sum)
	a.record(sum, collector)

	switch {
	case ctx.Err() != nil || sum.Cancelled > 0:
		return &ExitError{Code: ExitCancelled, Err: fmt.Errorf("cancelled: %d of %d files not finished", sum.Cancelled, len(sum.Items))}
	case sum.Failed > 0:
		return &ExitError{Code: ExitPartialFailure, Err: fmt.Errorf("%d of %d files failed", sum.Failed, len(sum.Items))}
	}
	return nil
}

// record persists the run in the history database and metrics textfile.
// Failures are logged and never change the exit code.
func (a *app) record(sum model.RunSummary, collector *metrics.Collector) {
	if a.cfg.History.Enabled {
		path := a.cfg.History.Path
		if path == "" {
			path, _ = dirs.HistoryPath()
		}
		if path != "" {
			if st, err := history.Open(path, a.log); err != nil {
				a.log.WithError(err).Warn("history unavailable")
			} else {
				if err := st.Save(sum); err != nil {
					a.log.WithError(err).Warn("could not record run")
				}
				_ = st.Close()
			}
		}
	}
	if collector != nil {
		collector.ObserveRun(sum)
		if err := collector.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.log.WithError(err).Warn("could not write metrics")
		}
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
