package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"av1conv/internal/model"
)

func summary(id string, started time.Time) model.RunSummary {
	s := model.RunSummary{
		ID:         id,
		Encoder:    model.EncoderQSV,
		StartedAt:  started,
		FinishedAt: started.Add(time.Hour),
		Items: []model.ItemResult{
			{
				Job:      model.JobItem{ID: "j1", SourcePath: "/m/a.mkv"},
				Outcome:  model.Completed("/m/a_av1.mkv", 1000, 300),
				Score:    &model.QualityScore{Mean: 95.5, Model: "vmaf_v0.6.1"},
				Decision: model.Delete,
				Elapsed:  42 * time.Second,
			},
			{
				Job:      model.JobItem{ID: "j2", SourcePath: "/m/b.mkv"},
				Outcome:  model.Skipped(model.SkipAlreadyAV1),
				Decision: model.Retain,
			},
		},
	}
	s.Tally()
	return s
}

func TestSaveAndRecent(t *testing.T) {
	log, _ := test.NewNullLogger()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), log)
	require.NoError(t, err)
	defer st.Close()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.Save(summary("run-old", base)))
	require.NoError(t, st.Save(summary("run-new", base.Add(24*time.Hour))))

	runs, err := st.Recent(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, "run-new", r.ID)
	assert.Equal(t, "qsv", r.Encoder)
	assert.Equal(t, 1, r.Converted)
	assert.Equal(t, 1, r.Deleted)
	assert.Equal(t, int64(700), r.BytesSaved)
	require.Len(t, r.Items, 2)
	assert.Equal(t, "/m/a.mkv", r.Items[0].Source)
	require.NotNil(t, r.Items[0].VMAF)
	assert.InDelta(t, 95.5, *r.Items[0].VMAF, 1e-9)
	assert.Equal(t, "delete", r.Items[0].Decision)
	assert.Equal(t, "already-AV1", r.Items[1].Detail)
	assert.Nil(t, r.Items[1].VMAF)

	runs, err = st.Recent(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSaveRequiresID(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "h.db"), nil)
	require.NoError(t, err)
	defer st.Close()
	assert.Error(t, st.Save(model.RunSummary{}))
}
