// Package tracks decides which audio and subtitle streams are carried into
// the encoded file.
package tracks

import (
	"fmt"
	"path/filepath"
	"strings"

	"av1conv/internal/model"
)

// Preferences is the language policy applied when the user made no explicit
// choice.
type Preferences struct {
	Audio             []string
	Subtitles         []string
	SelectAllFallback bool
}

// Resolve applies the language policy to a probed file. Tracks are chosen in
// preference order, then stream order; when nothing matches a type the
// fallback flag decides between all and none.
func Resolve(m model.MediaDescriptor, prefs Preferences) model.TrackSelection {
	return model.TrackSelection{
		Video:     m.VideoIndex,
		Audio:     pick(m.Audio, prefs.Audio, prefs.SelectAllFallback),
		Subtitles: pick(m.Subtitles, prefs.Subtitles, prefs.SelectAllFallback),
	}
}

func pick(tracks []model.Track, langs []string, fallback bool) []int {
	var out []int
	seen := make(map[int]bool, len(tracks))
	for _, lang := range langs {
		for _, t := range tracks {
			if !seen[t.Index] && matches(t.Language, lang) {
				seen[t.Index] = true
				out = append(out, t.Index)
			}
		}
	}
	if len(out) == 0 && fallback {
		for _, t := range tracks {
			out = append(out, t.Index)
		}
	}
	return out
}

// matches compares language tags case-insensitively, accepting the common
// two-letter forms of the three-letter codes.
func matches(trackLang, want string) bool {
	a := strings.ToLower(strings.TrimSpace(trackLang))
	b := strings.ToLower(strings.TrimSpace(want))
	if a == "" || b == "" {
		return false
	}
	return a == b || alias[a] == b || alias[b] == a
}

// alias maps ISO 639-1 codes to the ISO 639-2 codes Matroska uses.
var alias = map[string]string{
	"en": "eng", "it": "ita", "fr": "fre", "de": "ger", "es": "spa",
	"ja": "jpn", "pt": "por", "ru": "rus", "zh": "chi", "ko": "kor",
	"nl": "dut", "sv": "swe", "pl": "pol",
}

// Choose returns the tracks to carry for m. Types named by an explicit choice
// use it verbatim after validation; the rest follow the preferences.
func Choose(m model.MediaDescriptor, choice *model.TrackChoice, prefs Preferences) (model.TrackSelection, error) {
	sel := Resolve(m, prefs)
	if choice == nil {
		return sel, nil
	}
	if choice.Audio != nil {
		sel.Audio = append([]int{}, choice.Audio...)
	}
	if choice.Subtitles != nil {
		sel.Subtitles = append([]int{}, choice.Subtitles...)
	}
	if err := Validate(m, sel); err != nil {
		return model.TrackSelection{}, err
	}
	return sel, nil
}

// Validate checks an explicit selection against the file's tracks.
func Validate(m model.MediaDescriptor, sel model.TrackSelection) error {
	if err := checkRange("audio", sel.Audio, len(m.Audio)); err != nil {
		return err
	}
	return checkRange("subtitle", sel.Subtitles, len(m.Subtitles))
}

func checkRange(kind string, idx []int, n int) error {
	seen := map[int]bool{}
	for _, i := range idx {
		if i < 0 || i >= n {
			return fmt.Errorf("%s track %d does not exist (file has %d)", kind, i, n)
		}
		if seen[i] {
			return fmt.Errorf("%s track %d selected twice", kind, i)
		}
		seen[i] = true
	}
	return nil
}

// bitmapSubtitles are image-based subtitle codecs; they cannot be converted
// to mov_text or webvtt.
var bitmapSubtitles = map[string]bool{
	"hdmv_pgs_subtitle": true,
	"dvd_subtitle":      true,
	"dvb_subtitle":      true,
	"xsub":              true,
}

// ForContainer drops selected subtitle tracks that the output container cannot
// hold. MP4 and WebM carry text subtitles only. It returns the type-relative
// indices it removed.
func ForContainer(m model.MediaDescriptor, sel model.TrackSelection, output string) (model.TrackSelection, []int) {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".mp4", ".webm":
	default:
		return sel, nil
	}
	codecs := make(map[int]string, len(m.Subtitles))
	for _, t := range m.Subtitles {
		codecs[t.Index] = strings.ToLower(t.Codec)
	}
	var kept, dropped []int
	for _, i := range sel.Subtitles {
		if bitmapSubtitles[codecs[i]] {
			dropped = append(dropped, i)
			continue
		}
		kept = append(kept, i)
	}
	if dropped == nil {
		return sel, nil
	}
	sel.Subtitles = kept
	return sel, dropped
}
