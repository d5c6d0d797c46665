package tracks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"av1conv/internal/model"
)

func audio(langs ...string) []model.Track {
	out := make([]model.Track, len(langs))
	for i, l := range langs {
		out[i] = model.Track{Kind: model.TrackAudio, Index: i, Language: l}
	}
	return out
}

func subs(langs ...string) []model.Track {
	out := audio(langs...)
	for i := range out {
		out[i].Kind = model.TrackSubtitle
	}
	return out
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		media model.MediaDescriptor
		prefs Preferences
		wantA []int
		wantS []int
	}{
		{
			name:  "preference order",
			media: model.MediaDescriptor{Audio: audio("ita", "eng", "ENG"), Subtitles: subs("fre", "eng")},
			prefs: Preferences{Audio: []string{"eng", "ita"}, Subtitles: []string{"eng"}},
			wantA: []int{1, 2, 0},
			wantS: []int{1},
		},
		{
			name:  "no match with fallback selects all",
			media: model.MediaDescriptor{Audio: audio("jpn", "und"), Subtitles: subs("spa")},
			prefs: Preferences{Audio: []string{"eng"}, Subtitles: []string{"eng"}, SelectAllFallback: true},
			wantA: []int{0, 1},
			wantS: []int{0},
		},
		{
			name:  "no match without fallback selects none",
			media: model.MediaDescriptor{Audio: audio("jpn"), Subtitles: subs("spa")},
			prefs: Preferences{Audio: []string{"eng"}, Subtitles: []string{"eng"}},
			wantA: nil,
			wantS: nil,
		},
		{
			name:  "empty preferences fall back",
			media: model.MediaDescriptor{Audio: audio("jpn", "eng")},
			prefs: Preferences{SelectAllFallback: true},
			wantA: []int{0, 1},
			wantS: nil,
		},
		{
			name:  "duplicate preferences do not duplicate tracks",
			media: model.MediaDescriptor{Audio: audio("eng")},
			prefs: Preferences{Audio: []string{"eng", "ENG", "en"}},
			wantA: []int{0},
		},
		{
			name:  "two letter alias",
			media: model.MediaDescriptor{Audio: audio("it")},
			prefs: Preferences{Audio: []string{"ita"}},
			wantA: []int{0},
		},
		{
			name:  "untagged tracks never match a language",
			media: model.MediaDescriptor{Audio: audio("", "eng")},
			prefs: Preferences{Audio: []string{"eng"}, SelectAllFallback: true},
			wantA: []int{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.media, tt.prefs)
			assert.Equal(t, tt.wantA, got.Audio)
			assert.Equal(t, tt.wantS, got.Subtitles)
		})
	}
}

func TestResolveKeepsVideo(t *testing.T) {
	m := model.MediaDescriptor{VideoIndex: 1}
	sel := Resolve(m, Preferences{})
	assert.Equal(t, []string{"-map", "0:v:1"}, sel.MapArgs())
}

func TestValidate(t *testing.T) {
	m := model.MediaDescriptor{Audio: audio("eng", "ita"), Subtitles: subs("eng")}
	assert.NoError(t, Validate(m, model.TrackSelection{Audio: []int{1}, Subtitles: []int{0}}))
	assert.Error(t, Validate(m, model.TrackSelection{Audio: []int{2}}))
	assert.Error(t, Validate(m, model.TrackSelection{Subtitles: []int{-1}}))
	assert.Error(t, Validate(m, model.TrackSelection{Audio: []int{0, 0}}))
}

func TestChoose(t *testing.T) {
	m := model.MediaDescriptor{Audio: audio("eng", "jpn"), Subtitles: subs("eng", "jpn")}
	prefs := Preferences{Audio: []string{"eng"}, Subtitles: []string{"eng"}}

	sel, err := Choose(m, nil, prefs)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, sel.Audio)

	sel, err = Choose(m, &model.TrackChoice{Audio: []int{1}}, prefs)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, sel.Audio)
	assert.Equal(t, []int{0}, sel.Subtitles, "unset type follows preferences")

	sel, err = Choose(m, &model.TrackChoice{Subtitles: []int{}}, prefs)
	require.NoError(t, err)
	assert.Empty(t, sel.Subtitles)

	_, err = Choose(m, &model.TrackChoice{Audio: []int{7}}, prefs)
	assert.Error(t, err)
}

func TestForContainerDropsBitmapSubtitles(t *testing.T) {
	m := model.MediaDescriptor{Subtitles: subs("eng", "eng", "ita")}
	m.Subtitles[0].Codec = "hdmv_pgs_subtitle"
	m.Subtitles[1].Codec = "subrip"
	m.Subtitles[2].Codec = "dvd_subtitle"
	sel := model.TrackSelection{Audio: []int{0}, Subtitles: []int{0, 1, 2}}

	got, dropped := ForContainer(m, sel, "/out/film_av1.mp4")
	assert.Equal(t, []int{1}, got.Subtitles)
	assert.Equal(t, []int{0, 2}, dropped)
	assert.Equal(t, []int{0}, got.Audio)

	got, dropped = ForContainer(m, sel, "/out/film_av1.webm")
	assert.Equal(t, []int{1}, got.Subtitles)
	assert.Len(t, dropped, 2)

	got, dropped = ForContainer(m, sel, "/out/film_av1.mkv")
	assert.Equal(t, []int{0, 1, 2}, got.Subtitles)
	assert.Nil(t, dropped)
}
