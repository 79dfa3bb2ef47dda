package home

import (
	"fmt"
	"math"
	"time"

	"github.com/dokzlo13/homebase/internal/lighting"
)

// ConfigSpec is the hand-written config block of a node in the home spec.
// Every value given here is a permanent override.
type ConfigSpec struct {
	Dynamic     *bool           `yaml:"dynamic"`
	Colorful    *bool           `yaml:"colorful"`
	On          *bool           `yaml:"on"`
	Hue         *float64        `yaml:"hue"`
	Saturation  *float64        `yaml:"saturation"`
	Luminance   *float64        `yaml:"luminance"`
	Brightness  *float64        `yaml:"brightness"`
	WhiteTemp   *float64        `yaml:"white_temp"`
	ColorOffset *int            `yaml:"color_offset"`
	Static      *lighting.State `yaml:"static"`
}

// Config converts the spec block into a node configuration. Modifiers must lie
// in [-1,1], the color offset in [0,MaxColorOffset] and static channels in
// [0,1]; anything else is rejected instead of clamped.
func (s *ConfigSpec) Config() (lighting.Config, error) {
	var cfg lighting.Config
	if s == nil {
		return cfg, nil
	}
	if s.Dynamic != nil {
		cfg.OverrideDynamic(*s.Dynamic)
	}
	if s.Colorful != nil {
		cfg.OverrideColorful(*s.Colorful)
	}
	if s.On != nil {
		cfg.OverrideToggledOn(*s.On)
	}
	mods := []struct {
		ch lighting.Channel
		v  *float64
	}{
		{lighting.ChannelHue, s.Hue},
		{lighting.ChannelSaturation, s.Saturation},
		{lighting.ChannelLuminance, s.Luminance},
		{lighting.ChannelBrightness, s.Brightness},
		{lighting.ChannelWhiteTemp, s.WhiteTemp},
	}
	for _, m := range mods {
		if m.v == nil {
			continue
		}
		if math.IsNaN(*m.v) || *m.v < -1 || *m.v > 1 {
			return cfg, fmt.Errorf("%w: %s modifier %v outside [-1,1]", ErrInvalidSpec, m.ch, *m.v)
		}
		cfg.SetModifier(m.ch, *m.v, false, time.Time{})
	}
	if s.ColorOffset != nil {
		if *s.ColorOffset < 0 || *s.ColorOffset > lighting.MaxColorOffset {
			return cfg, fmt.Errorf("%w: color offset %d outside [0,%d]", ErrInvalidSpec, *s.ColorOffset, lighting.MaxColorOffset)
		}
		cfg.AdaptColorOffset(*s.ColorOffset)
	}
	if s.Static != nil {
		st := *s.Static
		if st.Clamp() != st || math.IsNaN(st.Brightness) || math.IsNaN(st.WhiteTemp) ||
			math.IsNaN(st.Color.H) || math.IsNaN(st.Color.S) || math.IsNaN(st.Color.V) {
			return cfg, fmt.Errorf("%w: static state %v has channels outside [0,1]", ErrInvalidSpec, st)
		}
		cfg.OverrideStatic(st)
	}
	return cfg, nil
}

// OverrideDoc is the persisted form of an override.
type OverrideDoc[T any] struct {
	Permanent *T         `json:"permanent,omitempty"`
	Temporary *T         `json:"temporary,omitempty"`
	SetAt     *time.Time `json:"set_at,omitempty"`
}

func encodeOverride[T any](o lighting.Override[T]) *OverrideDoc[T] {
	if !o.IsSet() {
		return nil
	}
	doc := &OverrideDoc[T]{Permanent: o.Permanent}
	if o.Temporary != nil {
		v := o.Temporary.Value
		at := o.Temporary.SetAt
		doc.Temporary = &v
		doc.SetAt = &at
	}
	return doc
}

func (d *OverrideDoc[T]) decode() lighting.Override[T] {
	var o lighting.Override[T]
	if d == nil {
		return o
	}
	if d.Permanent != nil {
		o.SetPermanent(*d.Permanent)
	}
	if d.Temporary != nil {
		var at time.Time
		if d.SetAt != nil {
			at = *d.SetAt
		}
		o.SetTemp(*d.Temporary, at)
	}
	return o
}

// ConfigDoc is the persisted form of a node configuration.
type ConfigDoc struct {
	Colorful    *OverrideDoc[bool]           `json:"colorful,omitempty"`
	Dynamic     *OverrideDoc[bool]           `json:"dynamic,omitempty"`
	ToggledOn   *OverrideDoc[bool]           `json:"on,omitempty"`
	Hue         *OverrideDoc[float64]        `json:"hue,omitempty"`
	Saturation  *OverrideDoc[float64]        `json:"saturation,omitempty"`
	Luminance   *OverrideDoc[float64]        `json:"luminance,omitempty"`
	Brightness  *OverrideDoc[float64]        `json:"brightness,omitempty"`
	WhiteTemp   *OverrideDoc[float64]        `json:"white_temp,omitempty"`
	ColorOffset *OverrideDoc[int]            `json:"color_offset,omitempty"`
	Static      *OverrideDoc[lighting.State] `json:"static,omitempty"`
}

// EncodeConfig converts a configuration to its persisted form.
func EncodeConfig(c lighting.Config) ConfigDoc {
	return ConfigDoc{
		Colorful:    encodeOverride(c.Colorful),
		Dynamic:     encodeOverride(c.Dynamic),
		ToggledOn:   encodeOverride(c.ToggledOn),
		Hue:         encodeOverride(c.Hue),
		Saturation:  encodeOverride(c.Saturation),
		Luminance:   encodeOverride(c.Luminance),
		Brightness:  encodeOverride(c.Brightness),
		WhiteTemp:   encodeOverride(c.WhiteTemp),
		ColorOffset: encodeOverride(c.ColorOffset),
		Static:      encodeOverride(c.Static),
	}
}

// Config converts the persisted form back into a configuration.
func (d ConfigDoc) Config() lighting.Config {
	return lighting.Config{
		Colorful:    d.Colorful.decode(),
		Dynamic:     d.Dynamic.decode(),
		ToggledOn:   d.ToggledOn.decode(),
		Hue:         d.Hue.decode(),
		Saturation:  d.Saturation.decode(),
		Luminance:   d.Luminance.decode(),
		Brightness:  d.Brightness.decode(),
		WhiteTemp:   d.WhiteTemp.decode(),
		ColorOffset: d.ColorOffset.decode(),
		Static:      d.Static.decode(),
	}
}
