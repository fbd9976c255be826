package bench

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tier is a normalized difficulty category.
type Tier int

// Known tiers. Unclassified pairs only count toward the overall summary.
const (
	Unclassified Tier = iota
	Simple
	Moderate
	Challenging
)

// Tiers lists the known categories in reporting order.
var Tiers = []Tier{Simple, Moderate, Challenging}

func (t Tier) String() string {
	switch t {
	case Simple:
		return "simple"
	case Moderate:
		return "moderate"
	case Challenging:
		return "challenging"
	default:
		return "unclassified"
	}
}

// Difficulty keeps the normalized tier alongside the raw label.
type Difficulty struct {
	Tier Tier
	Raw  string
}

// Label returns the tier name, or the raw label for unclassified pairs.
func (d Difficulty) Label() string {
	if d.Tier == Unclassified && d.Raw != "" {
		return d.Raw
	}
	return d.Tier.String()
}

// ParseDifficulty maps integer codes 1..3 and case-insensitive tier names to a
// tier. Anything else is kept as an unclassified raw label.
func ParseDifficulty(raw any) Difficulty {
	switch v := raw.(type) {
	case nil:
		return Difficulty{}
	case Difficulty:
		return v
	case int:
		return fromCode(int64(v), strconv.Itoa(v))
	case int64:
		return fromCode(v, strconv.FormatInt(v, 10))
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return fromCode(int64(v), strconv.FormatInt(int64(v), 10))
		}
		return Difficulty{Raw: strconv.FormatFloat(v, 'g', -1, 64)}
	case string:
		return parseLabel(v)
	default:
		return parseLabel(fmt.Sprint(v))
	}
}

func parseLabel(s string) Difficulty {
	label := strings.ToLower(strings.TrimSpace(s))
	switch label {
	case "":
		return Difficulty{}
	case "simple":
		return Difficulty{Tier: Simple, Raw: label}
	case "moderate":
		return Difficulty{Tier: Moderate, Raw: label}
	case "challenging":
		return Difficulty{Tier: Challenging, Raw: label}
	}
	if f, err := strconv.ParseFloat(label, 64); err == nil {
		return ParseDifficulty(f)
	}
	return Difficulty{Raw: label}
}

func fromCode(code int64, raw string) Difficulty {
	switch code {
	case 1:
		return Difficulty{Tier: Simple, Raw: raw}
	case 2:
		return Difficulty{Tier: Moderate, Raw: raw}
	case 3:
		return Difficulty{Tier: Challenging, Raw: raw}
	}
	return Difficulty{Raw: raw}
}

// UnmarshalYAML accepts ints, floats and strings.
func (d *Difficulty) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*d = ParseDifficulty(raw)
	return nil
}

// MarshalYAML writes the label back out.
func (d Difficulty) MarshalYAML() (any, error) {
	return d.Label(), nil
}

// UnmarshalJSON accepts numbers and strings.
func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = ParseDifficulty(raw)
	return nil
}

// MarshalJSON writes the label as a string.
func (d Difficulty) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Label())
}
