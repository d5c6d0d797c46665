package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"av1conv/internal/model"
	"av1conv/internal/pipeline"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "plan [paths...]",
		Short:         "Probe files and show what a run would do, without encoding",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			items, err := a.queue(cmd.Flags(), args)
			if err != nil {
				return err
			}
			sess, err := a.prepare(cmd.Context())
			if err != nil {
				return err
			}
			plans := a.coordinator(sess).Plan(cmd.Context(), items)
			printPlan(cmd.OutOrStdout(), sess.detection.Kind, plans)
			if sess.abav1 != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "ab-av1 will search a CRF per file; the values above are the fallback")
			}
			if cmd.Context().Err() != nil {
				return &ExitError{Code: ExitCancelled, Err: cmd.Context().Err()}
			}
			return nil
		},
	}
	// Reuse same flags; plan ignores actual encode
	bindRunFlags(cmd.Flags())
	return cmd
}

func printPlan(w io.Writer, kind model.EncoderKind, plans []pipeline.PlanItem) {
	fmt.Fprintf(w, "Encoder: %s\n", kind.DisplayName())
	var encode int
	for i, p := range plans {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(plans), p.Job.SourcePath)
		if p.Skip != "" {
			msg := string(p.Skip)
			if p.Err != nil {
				msg += ": " + p.Err.Error()
			}
			fmt.Fprintf(w, "  skip:     %s\n", msg)
			continue
		}
		if p.Err != nil {
			fmt.Fprintf(w, "  error:    %s\n", p.Err)
			continue
		}
		encode++
		m := p.Job.Media
		fmt.Fprintf(w, "  source:   %s %dx%d %s (%s)\n", m.Codec, m.Width, m.Height, m.DynamicRange, p.Class)
		fmt.Fprintf(w, "  encode:   %s %s %d, preset %s, %s\n", p.Spec.Encoder.DisplayName(), p.Spec.RateControlFlag, p.Spec.RateControl, p.Spec.SpeedPreset, p.Spec.PixelFormat)
		if p.Spec.FilmGrain > 0 {
			fmt.Fprintf(w, "  grain:    %d\n", p.Spec.FilmGrain)
		}
		fmt.Fprintf(w, "  tracks:   %s\n", strings.Join(p.Job.Tracks.MapArgs(), " "))
		fmt.Fprintf(w, "  output:   %s\n", p.Job.OutputPath)
		fmt.Fprintf(w, "  vmaf:     %s\n", p.Spec.VMAFModel)
	}
	fmt.Fprintf(w, "\n%d of %d files would be encoded\n", encode, len(plans))
}
