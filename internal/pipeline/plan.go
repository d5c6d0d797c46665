package pipeline

import (
	"context"

	"av1conv/internal/model"
	"av1conv/internal/preset"
	"av1conv/internal/tracks"
)

// PlanItem is the dry-run view of one queued file.
type PlanItem struct {
	Job   model.JobItem
	Class model.ResolutionClass
	Spec  model.PresetSpec
	// Skip is set when the file would not be encoded.
	Skip model.SkipReason
	Err  error
}

// Plan probes every item and reports what Run would do with it, without
// encoding or touching any file. Items that cannot be probed are reported as
// skipped with the probe error attached.
func (c *Coordinator) Plan(ctx context.Context, items []model.JobItem) []PlanItem {
	claims := c.claimOutputs(items)
	plans := make([]PlanItem, 0, len(items))
	for i, job := range items {
		if ctx.Err() != nil {
			break
		}
		p := PlanItem{Job: job}
		desc, err := c.prober.Probe(ctx, job.SourcePath)
		if err != nil {
			p.Skip, p.Err = model.SkipProbeFailed, err
			plans = append(plans, p)
			continue
		}
		p.Job.Media = desc
		p.Class = c.cfg.Resolution.Classify(desc.Width, desc.Height)
		if desc.IsAV1() {
			p.Skip = model.SkipAlreadyAV1
		}
		p.Job.OutputPath, p.Err = claims[i].output, claims[i].err
		sel, err := tracks.Choose(desc, job.Choice, c.trackPrefs())
		if err != nil && p.Err == nil {
			p.Err = err
		}
		p.Job.Tracks, _ = tracks.ForContainer(desc, sel, p.Job.OutputPath)
		p.Spec = preset.ForMedia(c.table, c.cfg.Resolution, desc, c.kind, c.cfg.Performance)
		plans = append(plans, p)
	}
	return plans
}

func (c *Coordinator) trackPrefs() tracks.Preferences {
	return tracks.Preferences{
		Audio:             c.cfg.Tracks.PreferredAudioLanguages,
		Subtitles:         c.cfg.Tracks.PreferredSubtitleLanguages,
		SelectAllFallback: c.cfg.Tracks.SelectAllFallback,
	}
}
