package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"av1conv/internal/config"
	"av1conv/internal/logging"
	"av1conv/internal/util"
)

const (
	ExitOK             = 0
	ExitCLIError       = 1
	ExitMissingDep     = 2
	ExitPartialFailure = 3
	ExitCancelled      = 4
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// app is the per-invocation state shared by subcommands.
type app struct {
	loader   *config.Loader
	cfg      config.Config
	log      *logrus.Logger
	closeLog func() error
	runner   util.CmdRunner
	verbose  bool
}

type ctxKey string

const appKey ctxKey = "app"

func appFrom(cmd *cobra.Command) *app {
	if a, ok := cmd.Context().Value(appKey).(*app); ok {
		return a
	}
	return nil
}

// quietLogs reopens the logger so nothing is written to the console; the TUI
// owns the screen while it runs.
func (a *app) quietLogs() error {
	log, closer, err := logging.New(a.cfg.Log, logging.Options{Verbose: a.verbose, Quiet: true})
	if err != nil {
		return err
	}
	_ = a.closeLog()
	a.log, a.closeLog = log, closer
	a.runner = util.NewDefaultRunner(log)
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "av1conv [paths...]",
		Short: "Batch-convert a video library to AV1",
		Long: "av1conv probes each video, picks an AV1 encoder and a quality preset for its resolution " +
			"and dynamic range, transcodes it, measures the result with VMAF and deletes the source " +
			"only when the score meets your threshold.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              cobra.MinimumNArgs(1),
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a := appFrom(cmd); a != nil {
				return a.closeLog()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{})
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default $XDG_CONFIG_HOME/av1conv/config.yaml)")
	pf.BoolP("verbose", "v", false, "Debug logging, including subprocess command lines")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text, json")
	pf.String("log-file", "", "Also write logs to this file")
	pf.String("ffmpeg", "", "Path to ffmpeg")
	pf.String("ffprobe", "", "Path to ffprobe")
	pf.String("ab-av1", "", "Path to ab-av1 (optional, enables per-file CRF search)")

	// Also bind run-specific flags on root, so `av1conv <dir>` works.
	bindRunFlags(root.Flags())

	root.AddCommand(newRunCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newTuiCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

func bindRunFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.StringP("encoder", "e", d.Encoder, "Encoder: auto, nvenc, qsv, amf, svt")
	fs.Float64P("vmaf-threshold", "t", d.Quality.VMAFThreshold, "Delete the source only when VMAF is at least this")
	fs.Bool("vmaf", d.Quality.VMAFEnabled, "Measure VMAF after each encode (sources are never deleted without it)")
	fs.Bool("crf-search", d.Quality.CRFSearch, "Search a per-file CRF with ab-av1 when it is installed")
	fs.Int("svt-preset", d.Performance.SVTPreset, "SVT-AV1 speed preset, 0 (slowest) to 13")
	fs.String("nvenc-preset", d.Performance.NVENCPreset, "NVENC preset p1-p7")
	fs.String("suffix", d.Output.Suffix, "Suffix appended to output file names")
	fs.String("container", d.Output.Container, "Output container: mkv, mp4, webm")
	fs.StringP("output-dir", "o", "", "Write outputs here instead of next to each source")
	fs.StringSlice("audio-lang", d.Tracks.PreferredAudioLanguages, "Preferred audio languages, in order")
	fs.StringSlice("sub-lang", d.Tracks.PreferredSubtitleLanguages, "Preferred subtitle languages, in order")
	fs.IntSlice("audio", nil, "Audio tracks to keep by index, applied to every file (overrides --audio-lang)")
	fs.IntSlice("subs", nil, "Subtitle tracks to keep by index, applied to every file (overrides --sub-lang)")
	fs.Bool("select-all-fallback", d.Tracks.SelectAllFallback, "Keep all tracks of a type when no preferred language matches")
	fs.IntP("jobs", "j", d.Run.Jobs, "Files encoded concurrently (1-8)")
	fs.Duration("stall-timeout", d.Run.StallTimeout, "Abort an encode after this long without progress (0 disables)")
	fs.BoolP("recursive", "r", d.Run.Recursive, "Descend into subdirectories")
	fs.Bool("validate", d.Run.ValidateOutput, "Probe each output and compare its duration with the source")
	fs.Bool("history", d.History.Enabled, "Record the run in the history database")
	fs.String("history-db", "", "History database path")
	fs.String("metrics-file", "", "Write Prometheus metrics to this textfile")
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
}

// setup loads configuration and builds the logger for every subcommand.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "completion" || cmd.Name() == "help" {
		return nil
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	loader, err := config.New(cfgFile, cmd.Flags())
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	cfg, err := loader.Load()
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("invalid configuration:\n%w", err)}
	}
	log, closer, err := logging.New(cfg.Log, logging.Options{Verbose: verbose, Console: cmd.ErrOrStderr()})
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	if f := loader.File(); f != "" {
		log.WithField("file", f).Debug("config loaded")
	}

	a := &app{
		loader:   loader,
		cfg:      cfg,
		log:      log,
		closeLog: closer,
		runner:   util.NewDefaultRunner(log),
		verbose:  verbose,
	}
	cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
	return nil
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	return root.ExecuteContext(ctx)
}

// detectTimeout bounds encoder detection, including the test encodes.
const detectTimeout = 2 * time.Minute
