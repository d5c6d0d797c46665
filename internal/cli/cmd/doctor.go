package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"av1conv/internal/detect"
	"av1conv/internal/dirs"
	"av1conv/internal/util/deps"
	"av1conv/internal/util/disk"
	"av1conv/internal/util/format"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Check ffmpeg, ffprobe, libvmaf and the available AV1 encoders",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			w := cmd.OutOrStdout()
			ctx := cmd.Context()

			st := deps.Check(ctx, a.runner, a.cfg.Binaries.FFmpeg, a.cfg.Binaries.FFprobe)
			fmt.Fprintf(w, "ffmpeg:   %s\n", pathOrErr(st.FFmpeg, st.FFmpegErr))
			if st.Version != "" {
				fmt.Fprintf(w, "          %s\n", st.Version)
			}
			fmt.Fprintf(w, "ffprobe:  %s\n", pathOrErr(st.FFprobe, st.FFprobeErr))
			fmt.Fprintf(w, "libvmaf:  %s\n", yesNo(st.LibVMAF, "available", "missing, sources will never be deleted"))
			abav1, err := deps.FindABAV1(a.cfg.Binaries.ABAV1)
			if err == nil {
				if v := deps.ABAV1Version(ctx, a.runner, abav1); v != "" {
					abav1 += " (" + v + ")"
				}
				fmt.Fprintf(w, "ab-av1:   %s\n", abav1)
			} else {
				fmt.Fprintln(w, "ab-av1:   not found, rate control comes from the preset table")
			}
			if !st.Ready() {
				return &ExitError{Code: ExitMissingDep, Err: errors.New("required binaries are missing")}
			}

			dctx, cancel := context.WithTimeout(ctx, detectTimeout)
			defer cancel()
			det := detect.New(st.FFmpeg, a.runner, a.log).Detect(dctx)
			fmt.Fprintln(w, "\nEncoders:")
			for _, at := range det.Attempts {
				fmt.Fprintf(w, "  %-12s %s %s\n", at.Kind.DisplayName(), yesNo(at.OK, "ok", "no"), at.Reason)
			}
			fmt.Fprintf(w, "  selected: %s\n", det.Kind.DisplayName())

			if dir, err := dirs.ScratchDir(); err == nil {
				if free, err := disk.Free(dir); err == nil {
					fmt.Fprintf(w, "\nScratch:  %s (%s free)\n", dir, format.HumanizeBytes(int64(free)))
				}
			}
			if !det.Usable() {
				return &ExitError{Code: ExitMissingDep, Err: errors.New(noEncoderMessage(det))}
			}
			return nil
		},
	}
}

func pathOrErr(path string, err error) string {
	if err != nil {
		return "not found (" + err.Error() + ")"
	}
	return path
}

func yesNo(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
