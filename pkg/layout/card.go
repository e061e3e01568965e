package layout

import (
	"time"

	"github.com/menta2k/photocard/pkg/types"
)

// Layout holds every placement and style field of a card. It is the part a
// reset restores.
type Layout struct {
	PhotoPosition types.Point     `json:"photoPosition"`
	PhotoSize     types.PhotoSize `json:"photoSize"`
	NamePosition  types.Point     `json:"namePosition"`
	TitlePosition types.Point     `json:"titlePosition"`
	NameStyle     types.TextStyle `json:"nameStyle"`
	TitleStyle    types.TextStyle `json:"titleStyle"`
}

// DefaultLayout returns the layout every new card starts with
func DefaultLayout() Layout {
	return Layout{
		PhotoPosition: types.Pt(50, 28),
		PhotoSize:     types.PhotoSize{Width: 36},
		NamePosition:  types.Pt(50, 82),
		TitlePosition: types.Pt(50, 88),
		NameStyle:     types.TextStyle{FontSize: 18, Color: "#ffffff", Weight: 600},
		TitleStyle:    types.TextStyle{FontSize: 14, Color: "#ffffff", Weight: 400},
	}
}

// Position returns the center of the given element
func (l Layout) Position(el types.ElementType) (types.Point, bool) {
	switch el {
	case types.ElementPhoto:
		return l.PhotoPosition, true
	case types.ElementName:
		return l.NamePosition, true
	case types.ElementTitle:
		return l.TitlePosition, true
	}
	return types.Point{}, false
}

// Style returns the style of a text element
func (l Layout) Style(el types.ElementType) (types.TextStyle, bool) {
	switch el {
	case types.ElementName:
		return l.NameStyle, true
	case types.ElementTitle:
		return l.TitleStyle, true
	}
	return types.TextStyle{}, false
}

// Card is one photo card: the uploaded photo, its text labels and their
// placement on the template.
type Card struct {
	ID         string            `json:"id"`
	Source     *types.SourceRef  `json:"source,omitempty"`
	Normalized *types.Blob       `json:"normalized,omitempty"`
	Cropped    *types.Blob       `json:"cropped,omitempty"`
	Crop       *types.CropRegion `json:"crop,omitempty"`
	Name       string            `json:"name"`
	Title      string            `json:"title"`
	Layout
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Photo returns the image to draw: the crop when present, otherwise the
// normalized upload.
func (c *Card) Photo() *types.Blob {
	if !c.Cropped.Empty() {
		return c.Cropped
	}
	if !c.Normalized.Empty() {
		return c.Normalized
	}
	return nil
}

// HasPhoto reports whether the card has an image to draw
func (c *Card) HasPhoto() bool {
	return c.Photo() != nil
}

// Ready reports whether the card has a photo and a name, the minimum for
// export.
func (c *Card) Ready() bool {
	return c.HasPhoto() && c.Name != ""
}

func (c *Card) clone() Card {
	out := *c
	if c.Source != nil {
		s := *c.Source
		out.Source = &s
	}
	if c.Crop != nil {
		r := *c.Crop
		out.Crop = &r
	}
	return out
}
