package behavior

import (
	"fmt"
	"strconv"
)

// Properties is a small case-insensitive value bag. Owners carry one for
// engine-native state behaviors are allowed to touch, and each scene carries
// one as the context shared by its objects.
type Properties struct {
	values map[string]any
}

func NewProperties() *Properties {
	return &Properties{values: make(map[string]any)}
}

func (p *Properties) Set(name string, v any) {
	p.values[foldName(name)] = v
}

func (p *Properties) Get(name string) (any, bool) {
	v, ok := p.values[foldName(name)]
	return v, ok
}

func (p *Properties) Delete(name string) {
	delete(p.values, foldName(name))
}

func (p *Properties) Len() int { return len(p.values) }

// Bool reads a boolean property; absent or non-boolean values read false.
func (p *Properties) Bool(name string) bool {
	switch v := p.values[foldName(name)].(type) {
	case bool:
		return v
	case string:
		b, _ := parseBool(v)
		return b
	case int:
		return v != 0
	}
	return false
}

// Toggle flips a boolean property and returns the new value.
func (p *Properties) Toggle(name string) bool {
	v := !p.Bool(name)
	p.Set(name, v)
	return v
}

func (p *Properties) Int(name string) int {
	switch v := p.values[foldName(name)].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func (p *Properties) Float(name string) float64 {
	switch v := p.values[foldName(name)].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func (p *Properties) String(name string) string {
	v, ok := p.values[foldName(name)]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
