package probe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"av1conv/internal/model"
)

// ParseJSON converts raw ffprobe JSON output into a MediaDescriptor.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (model.MediaDescriptor, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.MediaDescriptor{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildDescriptor(&raw)
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index          int               `json:"index"`
	CodecName      string            `json:"codec_name"`
	CodecType      string            `json:"codec_type"`
	CodecTag       string            `json:"codec_tag_string"`
	PixFmt         string            `json:"pix_fmt"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	ColorTransfer  string            `json:"color_transfer"`
	ColorPrimaries string            `json:"color_primaries"`
	ColorSpace     string            `json:"color_space"`
	RFrameRate     string            `json:"r_frame_rate"`
	Duration       string            `json:"duration"`
	Channels       int               `json:"channels"`
	Disposition    map[string]int    `json:"disposition"`
	Tags           map[string]string `json:"tags"`
	SideDataList   []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	Type string `json:"side_data_type"`
}

var errNoVideo = errors.New("no video stream with dimensions")

func buildDescriptor(raw *ffprobeOutput) (model.MediaDescriptor, error) {
	d := model.MediaDescriptor{
		Path:        raw.Format.Filename,
		DurationSec: parseFloat(raw.Format.Duration),
		SizeBytes:   parseInt64(raw.Format.Size),
		BitRate:     parseInt64(raw.Format.BitRate),
	}

	var video *ffprobeStream
	var nv, na, ns int
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil && s.Disposition["attached_pic"] != 1 && s.Width > 0 && s.Height > 0 {
				video = s
				d.VideoIndex = nv
			}
			nv++
		case "audio":
			d.Audio = append(d.Audio, convertTrack(s, model.TrackAudio, na))
			na++
		case "subtitle":
			d.Subtitles = append(d.Subtitles, convertTrack(s, model.TrackSubtitle, ns))
			ns++
		}
	}
	if video == nil {
		return model.MediaDescriptor{}, errNoVideo
	}

	d.Codec = video.CodecName
	d.Width = video.Width
	d.Height = video.Height
	d.PixelFormat = video.PixFmt
	d.ColorPrimaries = video.ColorPrimaries
	d.ColorTransfer = video.ColorTransfer
	d.ColorSpace = video.ColorSpace
	d.FrameRate = video.RFrameRate
	d.Transfer = transferOf(video.ColorTransfer)
	d.DynamicRange = Classify(video.ColorTransfer, video.ColorPrimaries, video.CodecTag, sideDataTypes(video))
	if d.DurationSec <= 0 {
		d.DurationSec = parseFloat(video.Duration)
	}
	return d, nil
}

func convertTrack(s *ffprobeStream, kind model.TrackKind, idx int) model.Track {
	return model.Track{
		Kind:        kind,
		Index:       idx,
		StreamIndex: s.Index,
		Language:    s.Tags["language"],
		Codec:       s.CodecName,
		Title:       s.Tags["title"],
		Channels:    s.Channels,
		Default:     s.Disposition["default"] == 1,
		Forced:      s.Disposition["forced"] == 1,
	}
}

func sideDataTypes(s *ffprobeStream) []string {
	out := make([]string, 0, len(s.SideDataList))
	for _, sd := range s.SideDataList {
		out = append(out, sd.Type)
	}
	return out
}

func transferOf(trc string) model.Transfer {
	switch strings.ToLower(trc) {
	case "smpte2084":
		return model.TransferPQ
	case "arib-std-b67":
		return model.TransferHLG
	}
	return model.TransferNone
}

// Classify derives the dynamic range: Dolby Vision when DOVI side data or a
// DV codec tag is present, HDR when the transfer is PQ or HLG on BT.2020
// primaries, SDR otherwise.
func Classify(transfer, primaries, codecTag string, sideData []string) model.DynamicRange {
	for _, t := range sideData {
		lt := strings.ToLower(t)
		if strings.Contains(lt, "dolby vision") || strings.Contains(lt, "dovi") {
			return model.RangeDolbyVision
		}
	}
	switch strings.ToLower(codecTag) {
	case "dvh1", "dvhe", "dav1":
		return model.RangeDolbyVision
	}
	if transferOf(transfer) != model.TransferNone && strings.EqualFold(primaries, "bt2020") {
		return model.RangeHDR
	}
	return model.RangeSDR
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
