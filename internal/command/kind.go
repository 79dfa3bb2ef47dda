package command

import (
	"fmt"
	"strings"
)

// Kind identifies a command.
type Kind int

const (
	KindToggle Kind = iota + 1
	KindTurnOn
	KindTurnOff
	KindDimUp
	KindDimDown
	KindSetBrightness
	KindEnableDynamic
	KindDisableDynamic
	KindEnableColorful
	KindDisableColorful
	KindSetModifier
	KindShiftColor
	KindSetStatic
	KindInherit
	KindReportState
	KindRefresh
)

var kindNames = map[Kind]string{
	KindToggle:          "toggle",
	KindTurnOn:          "turn_on",
	KindTurnOff:         "turn_off",
	KindDimUp:           "dim_up",
	KindDimDown:         "dim_down",
	KindSetBrightness:   "set_brightness",
	KindEnableDynamic:   "enable_dynamic",
	KindDisableDynamic:  "disable_dynamic",
	KindEnableColorful:  "enable_colorful",
	KindDisableColorful: "disable_colorful",
	KindSetModifier:     "set_modifier",
	KindShiftColor:      "shift_color",
	KindSetStatic:       "set_static",
	KindInherit:         "inherit",
	KindReportState:     "report_state",
	KindRefresh:         "refresh",
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := KindToggle; k <= KindRefresh; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts snake_case ("turn_on") and CamelCase ("TurnOn") names.
func ParseKind(s string) (Kind, error) {
	norm := normalize(s)
	for k, name := range kindNames {
		if normalize(name) == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

func normalize(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
