// Package preset maps a file's resolution and dynamic range onto concrete
// encoder settings.
package preset

import (
	"av1conv/internal/config"
	"av1conv/internal/model"
)

// Key addresses one cell of the preset table.
type Key struct {
	Res   model.ResolutionClass
	Range model.DynamicRange
}

// Table holds a Tuning for every resolution and dynamic-range pair.
type Table map[Key]config.Tuning

// dvOffset is how much lower the derived Dolby Vision cells sit below the
// SD/HD tiers, which have no dedicated HDR tuning.
const dvOffset = 2

// NewTable expands the configured tiers into a full table. SD and HD HDR
// cells reuse the SDR tier; their DV cells are the SDR tier lowered by
// dvOffset.
func NewTable(p config.PresetsConfig) Table {
	t := Table{
		{model.ResSD, model.RangeSDR}:          p.SD,
		{model.ResSD, model.RangeHDR}:          p.SD,
		{model.ResSD, model.RangeDolbyVision}:  lowered(p.SD, dvOffset),
		{model.ResHD, model.RangeSDR}:          p.HD,
		{model.ResHD, model.RangeHDR}:          p.HD,
		{model.ResHD, model.RangeDolbyVision}:  lowered(p.HD, dvOffset),
		{model.ResFHD, model.RangeSDR}:         p.FullHD,
		{model.ResFHD, model.RangeHDR}:         p.FullHDHDR,
		{model.ResFHD, model.RangeDolbyVision}: p.FullHDDV,
		{model.ResUHD, model.RangeSDR}:         p.UHD,
		{model.ResUHD, model.RangeHDR}:         p.UHDHDR,
		{model.ResUHD, model.RangeDolbyVision}: p.UHDDV,
	}
	return t
}

// DefaultTable is the built-in table.
func DefaultTable() Table {
	return NewTable(config.Default().Presets)
}

func lowered(t config.Tuning, by int) config.Tuning {
	dec := func(v int) int {
		if v == 0 {
			return 0
		}
		return max(v-by, 1)
	}
	t.CRF = dec(t.CRF)
	t.NVENCCQ = dec(t.NVENCCQ)
	t.QSVQuality = dec(t.QSVQuality)
	t.AMFQuality = dec(t.AMFQuality)
	return t
}

// lookup returns the cell, falling back to the SDR cell of the same
// resolution and then to the built-in table so every key resolves.
func (t Table) lookup(k Key) config.Tuning {
	if v, ok := t[k]; ok {
		return v
	}
	if v, ok := t[Key{k.Res, model.RangeSDR}]; ok {
		return v
	}
	return DefaultTable()[k]
}

// rateControl picks the backend's quality value from a tuning, falling back
// to the software CRF when the hardware value is unset.
func rateControl(t config.Tuning, kind model.EncoderKind) int {
	var v int
	switch kind {
	case model.EncoderNVENC:
		v = t.NVENCCQ
	case model.EncoderQSV:
		v = t.QSVQuality
	case model.EncoderAMF:
		v = t.AMFQuality
	}
	if v <= 0 {
		v = t.CRF
	}
	return v
}
