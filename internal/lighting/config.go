package lighting

import "time"

// Channel names the state channel a relative modifier targets.
type Channel string

const (
	ChannelHue        Channel = "hue"
	ChannelSaturation Channel = "saturation"
	ChannelLuminance  Channel = "luminance"
	ChannelBrightness Channel = "brightness"
	ChannelWhiteTemp  Channel = "white_temp"
)

// MaxColorOffset bounds the color offset steps.
const MaxColorOffset = 5

// Config is the per-node configuration. Every field is an Override so a node
// can defer any part of it to its ancestors.
type Config struct {
	Colorful    Override[bool]
	Dynamic     Override[bool]
	ToggledOn   Override[bool]
	Hue         Override[float64]
	Saturation  Override[float64]
	Luminance   Override[float64]
	Brightness  Override[float64]
	WhiteTemp   Override[float64]
	ColorOffset Override[int]
	Static      Override[State]
}

// WithParent merges every field with the parent's. Effective configuration is
// built nearest-first: node.WithParent(parent).WithParent(grandparent)...
func (c Config) WithParent(parent Config) Config {
	return Config{
		Colorful:    c.Colorful.WithParent(parent.Colorful),
		Dynamic:     c.Dynamic.WithParent(parent.Dynamic),
		ToggledOn:   c.ToggledOn.WithParent(parent.ToggledOn),
		Hue:         c.Hue.WithParent(parent.Hue),
		Saturation:  c.Saturation.WithParent(parent.Saturation),
		Luminance:   c.Luminance.WithParent(parent.Luminance),
		Brightness:  c.Brightness.WithParent(parent.Brightness),
		WhiteTemp:   c.WhiteTemp.WithParent(parent.WhiteTemp),
		ColorOffset: c.ColorOffset.WithParent(parent.ColorOffset),
		Static:      c.Static.WithParent(parent.Static),
	}
}

// Delta returns c without the permanent values it shares with base. Merging
// the result back onto base with WithParent restores c, except for permanent
// values c cleared that base still sets.
func (c Config) Delta(base Config) Config {
	return Config{
		Colorful:    withoutSamePermanent(c.Colorful, base.Colorful),
		Dynamic:     withoutSamePermanent(c.Dynamic, base.Dynamic),
		ToggledOn:   withoutSamePermanent(c.ToggledOn, base.ToggledOn),
		Hue:         withoutSamePermanent(c.Hue, base.Hue),
		Saturation:  withoutSamePermanent(c.Saturation, base.Saturation),
		Luminance:   withoutSamePermanent(c.Luminance, base.Luminance),
		Brightness:  withoutSamePermanent(c.Brightness, base.Brightness),
		WhiteTemp:   withoutSamePermanent(c.WhiteTemp, base.WhiteTemp),
		ColorOffset: withoutSamePermanent(c.ColorOffset, base.ColorOffset),
		Static:      withoutSamePermanent(c.Static, base.Static),
	}
}

func withoutSamePermanent[T comparable](o, base Override[T]) Override[T] {
	if o.Permanent != nil && base.Permanent != nil && *o.Permanent == *base.Permanent {
		o.Permanent = nil
	}
	return o
}

// Evict drops temporary values older than ttl and returns the names of the
// fields that lost one.
func (c Config) Evict(now time.Time, ttl time.Duration) (Config, []string) {
	var evicted []string
	mark := func(name string, dropped bool) {
		if dropped {
			evicted = append(evicted, name)
		}
	}
	var dropped bool
	c.Colorful, dropped = c.Colorful.Evict(now, ttl)
	mark("colorful", dropped)
	c.Dynamic, dropped = c.Dynamic.Evict(now, ttl)
	mark("dynamic", dropped)
	c.ToggledOn, dropped = c.ToggledOn.Evict(now, ttl)
	mark("on", dropped)
	c.Hue, dropped = c.Hue.Evict(now, ttl)
	mark(string(ChannelHue), dropped)
	c.Saturation, dropped = c.Saturation.Evict(now, ttl)
	mark(string(ChannelSaturation), dropped)
	c.Luminance, dropped = c.Luminance.Evict(now, ttl)
	mark(string(ChannelLuminance), dropped)
	c.Brightness, dropped = c.Brightness.Evict(now, ttl)
	mark(string(ChannelBrightness), dropped)
	c.WhiteTemp, dropped = c.WhiteTemp.Evict(now, ttl)
	mark(string(ChannelWhiteTemp), dropped)
	c.ColorOffset, dropped = c.ColorOffset.Evict(now, ttl)
	mark("color_offset", dropped)
	c.Static, dropped = c.Static.Evict(now, ttl)
	mark("static", dropped)
	return c, evicted
}

// modifier returns the override for a channel, nil for unknown channels.
func (c *Config) modifier(ch Channel) *Override[float64] {
	switch ch {
	case ChannelHue:
		return &c.Hue
	case ChannelSaturation:
		return &c.Saturation
	case ChannelLuminance:
		return &c.Luminance
	case ChannelBrightness:
		return &c.Brightness
	case ChannelWhiteTemp:
		return &c.WhiteTemp
	}
	return nil
}

// ValidChannel reports whether ch names a modifier channel.
func ValidChannel(ch Channel) bool {
	var c Config
	return c.modifier(ch) != nil
}

// OverrideStatic permanently sets the static fallback state.
func (c *Config) OverrideStatic(s State) { c.Static = Perm(s.Clamp()) }

// InheritStatic defers the static state to the parent.
func (c *Config) InheritStatic() { c.Static = None[State]() }

// OverrideColorful permanently sets the colorful flag.
func (c *Config) OverrideColorful(v bool) { c.Colorful = Perm(v) }

// OverrideColorfulTemporarily sets the colorful flag until it is evicted.
func (c *Config) OverrideColorfulTemporarily(v bool, now time.Time) { c.Colorful.SetTemp(v, now) }

// InheritColorful defers the colorful flag to the parent.
func (c *Config) InheritColorful() { c.Colorful = None[bool]() }

// OverrideDynamic permanently sets the dynamic flag.
func (c *Config) OverrideDynamic(v bool) { c.Dynamic = Perm(v) }

// OverrideDynamicTemporarily sets the dynamic flag until it is evicted.
func (c *Config) OverrideDynamicTemporarily(v bool, now time.Time) { c.Dynamic.SetTemp(v, now) }

// InheritDynamic defers the dynamic flag to the parent.
func (c *Config) InheritDynamic() { c.Dynamic = None[bool]() }

// OverrideToggledOn permanently switches the node on or off.
func (c *Config) OverrideToggledOn(v bool) { c.ToggledOn = Perm(v) }

// OverrideToggledOnTemporarily switches the node on or off until evicted.
func (c *Config) OverrideToggledOnTemporarily(v bool, now time.Time) { c.ToggledOn.SetTemp(v, now) }

// InheritToggledOn defers on/off to the parent.
func (c *Config) InheritToggledOn() { c.ToggledOn = None[bool]() }

// AdaptBrightnessMod permanently shifts the brightness modifier by diff.
func (c *Config) AdaptBrightnessMod(diff float64) {
	c.Brightness = Perm(adaptModifier(c.Brightness, diff))
}

// AdaptBrightnessModTemporarily shifts the brightness modifier by diff.
func (c *Config) AdaptBrightnessModTemporarily(diff float64, now time.Time) {
	c.Brightness.SetTemp(adaptModifier(c.Brightness, diff), now)
}

// SetBrightnessModTemporarily replaces the temporary brightness modifier.
func (c *Config) SetBrightnessModTemporarily(v float64, now time.Time) {
	c.Brightness.SetTemp(bounded(v, -1, 1), now)
}

// SetModifier sets a relative modifier on a channel. It returns false for an
// unknown channel.
func (c *Config) SetModifier(ch Channel, v float64, temporary bool, now time.Time) bool {
	o := c.modifier(ch)
	if o == nil {
		return false
	}
	v = bounded(v, -1, 1)
	if temporary {
		o.SetTemp(v, now)
	} else {
		o.SetPermanent(v)
	}
	return true
}

// InheritModifier clears a channel's modifier.
func (c *Config) InheritModifier(ch Channel) bool {
	o := c.modifier(ch)
	if o == nil {
		return false
	}
	o.Clear()
	return true
}

// AdaptColorOffset permanently shifts the color offset by n steps.
func (c *Config) AdaptColorOffset(n int) {
	c.ColorOffset = Perm(adaptOffset(c.ColorOffset, n))
}

// AdaptColorOffsetTemporarily shifts the color offset by n steps.
func (c *Config) AdaptColorOffsetTemporarily(n int, now time.Time) {
	c.ColorOffset.SetTemp(adaptOffset(c.ColorOffset, n), now)
}

func adaptModifier(o Override[float64], diff float64) float64 {
	return bounded(o.ValueOr(0)+diff, -1, 1)
}

func adaptOffset(o Override[int], n int) int {
	v := o.ValueOr(0) + n
	if v < 0 {
		return 0
	}
	if v > MaxColorOffset {
		return MaxColorOffset
	}
	return v
}
