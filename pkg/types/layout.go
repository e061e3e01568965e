package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ElementType names a placeable element of a card
type ElementType string

const (
	ElementPhoto ElementType = "photo"
	ElementName  ElementType = "name"
	ElementTitle ElementType = "title"
)

// ParseElementType validates an element name
func ParseElementType(s string) (ElementType, error) {
	switch e := ElementType(strings.ToLower(strings.TrimSpace(s))); e {
	case ElementPhoto, ElementName, ElementTitle:
		return e, nil
	}
	return "", fmt.Errorf("unknown element %q", s)
}

// IsText reports whether the element is one of the text labels
func (e ElementType) IsText() bool {
	return e == ElementName || e == ElementTitle
}

// PhotoAspect is the locked width:height ratio of the card photo
const PhotoAspect = 3.0 / 4.0

// Percent is a percentage of a container dimension. It serializes as a
// string with a trailing percent sign, e.g. "51.3%".
type Percent float64

// RoundPercent rounds a percentage to one decimal place
func RoundPercent(v float64) Percent {
	return Percent(math.Round(v*10) / 10)
}

// Float returns the numeric value
func (p Percent) Float() float64 {
	return float64(p)
}

// Fraction returns the value in the [0,1] range
func (p Percent) Fraction() float64 {
	return float64(p) / 100
}

// String formats the value with one decimal and a percent suffix
func (p Percent) String() string {
	return strconv.FormatFloat(float64(p), 'f', 1, 64) + "%"
}

// ParsePercent parses the numeric prefix of a percent string. A bare number
// is accepted as well.
func ParsePercent(s string) (Percent, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, fmt.Errorf("empty percent value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percent value %q: %w", s, err)
	}
	return Percent(v), nil
}

// MarshalJSON implements json.Marshaler
func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Percent) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var f float64
		if err2 := json.Unmarshal(b, &f); err2 != nil {
			return fmt.Errorf("percent must be a string or number: %w", err)
		}
		*p = Percent(f)
		return nil
	}
	v, err := ParsePercent(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Point is an element center expressed in percent-space
type Point struct {
	X Percent `json:"x"`
	Y Percent `json:"y"`
}

// Pt is shorthand for building a percent-space point
func Pt(x, y float64) Point {
	return Point{X: Percent(x), Y: Percent(y)}
}

// PhotoSize holds the photo width in percent-space. The height is never
// stored; it is always derived from the width under the 3:4 aspect lock.
type PhotoSize struct {
	Width Percent `json:"width"`
}

// HeightAuto is the serialized value of the derived photo height
const HeightAuto = "auto"

// MarshalJSON emits the height as the symbolic "auto" value
func (s PhotoSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Width  Percent `json:"width"`
		Height string  `json:"height"`
	}{s.Width, HeightAuto})
}

// UnmarshalJSON accepts {"width": "36%", "height": "auto"}. Any numeric
// height is rejected.
func (s *PhotoSize) UnmarshalJSON(b []byte) error {
	var raw struct {
		Width  Percent         `json:"width"`
		Height json.RawMessage `json:"height"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw.Height) > 0 && string(raw.Height) != "null" {
		var h string
		if err := json.Unmarshal(raw.Height, &h); err != nil || h != HeightAuto {
			return fmt.Errorf("photo height is derived and must be %q", HeightAuto)
		}
	}
	s.Width = raw.Width
	return nil
}

// TextStyle describes how a text label is drawn
type TextStyle struct {
	FontSize int    `json:"fontSize"`
	Color    string `json:"color"`
	Weight   int    `json:"fontWeight"`
}

// StylePatch carries the style fields an edit supplies. Nil fields are left
// untouched when merged.
type StylePatch struct {
	FontSize *int    `json:"fontSize,omitempty" validate:"omitempty,min=8,max=96"`
	Color    *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Weight   *int    `json:"fontWeight,omitempty" validate:"omitempty,min=100,max=900"`
}

// Merge returns the style with the patch fields applied
func (s TextStyle) Merge(p StylePatch) TextStyle {
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.Weight != nil {
		s.Weight = *p.Weight
	}
	return s
}
