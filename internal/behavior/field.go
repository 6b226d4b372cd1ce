package behavior

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldKind is the declared type of a behavior field. Values are stored as
// strings; the kind decides how they are validated and read back. Asset,
// object and keybind values are opaque identifiers resolved by whoever
// consumes them.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindFloat
	KindBool
	KindEnum
	KindAsset
	KindObject
	KindKeybind
	KindVector2
	KindColor
)

var kindNames = [...]string{
	KindString:  "string",
	KindInt:     "int",
	KindFloat:   "float",
	KindBool:    "bool",
	KindEnum:    "enum",
	KindAsset:   "asset",
	KindObject:  "object",
	KindKeybind: "keybind",
	KindVector2: "vector2",
	KindColor:   "color",
}

func (k FieldKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// ParseFieldKind accepts the kind names used in template definition files.
// "default" is an alias for string.
func ParseFieldKind(s string) (FieldKind, error) {
	key := foldName(s)
	if key == "default" || key == "" {
		return KindString, nil
	}
	for k, name := range kindNames {
		if name == key {
			return FieldKind(k), nil
		}
	}
	return KindString, fmt.Errorf("unknown field kind %q", s)
}

func (k FieldKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FieldKind) UnmarshalText(b []byte) error {
	v, err := ParseFieldKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Field declares one configurable value on a template.
type Field struct {
	Name        string
	Description string
	Kind        FieldKind
	Default     string
	// Choices lists the legal values of an enum field.
	Choices []string
	// UserData is free-form: the asset type for asset fields, the object
	// class for object fields.
	UserData string
}

// normalize validates v against the field kind and returns the value to
// store. Enum values are stored with the declared spelling. An empty value
// reads as zero for numbers and as the first choice for enums.
func (f *Field) normalize(v string) (string, error) {
	if strings.TrimSpace(v) == "" {
		switch f.Kind {
		case KindInt, KindFloat:
			return "0", nil
		case KindEnum:
			if len(f.Choices) > 0 {
				return f.Choices[0], nil
			}
		}
	}
	switch f.Kind {
	case KindInt:
		if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return "", fmt.Errorf("%w: field %q expects int, got %q", ErrInvalidFieldValue, f.Name, v)
		}
		return strings.TrimSpace(v), nil
	case KindFloat:
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return "", fmt.Errorf("%w: field %q expects float, got %q", ErrInvalidFieldValue, f.Name, v)
		}
		return strings.TrimSpace(v), nil
	case KindBool:
		b, ok := parseBool(v)
		if !ok {
			return "", fmt.Errorf("%w: field %q expects bool, got %q", ErrInvalidFieldValue, f.Name, v)
		}
		return formatBool(b), nil
	case KindEnum:
		for _, c := range f.Choices {
			if sameName(c, v) {
				return c, nil
			}
		}
		return "", fmt.Errorf("%w: field %q expects one of %v, got %q", ErrInvalidFieldValue, f.Name, f.Choices, v)
	case KindVector2:
		if len(parseFloats(v)) != 2 {
			return "", fmt.Errorf("%w: field %q expects \"x y\", got %q", ErrInvalidFieldValue, f.Name, v)
		}
		return strings.Join(strings.Fields(v), " "), nil
	case KindColor:
		if n := len(parseFloats(v)); n != 3 && n != 4 {
			return "", fmt.Errorf("%w: field %q expects \"r g b [a]\", got %q", ErrInvalidFieldValue, f.Name, v)
		}
		return strings.Join(strings.Fields(v), " "), nil
	default:
		return v, nil
	}
}

func parseBool(v string) (bool, bool) {
	switch foldName(v) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off", "":
		return false, true
	}
	return false, false
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// parseFloats returns nil when any component is not a number.
func parseFloats(v string) []float64 {
	parts := strings.Fields(v)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil
		}
		out = append(out, f)
	}
	return out
}
