// Package layout keeps the percent-space layout of every card and is the
// only place card state is mutated.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/photocard/pkg/coords"
	"github.com/menta2k/photocard/pkg/types"
)

var (
	ErrCardNotFound   = errors.New("card not found")
	ErrUnknownElement = errors.New("unknown element")
	ErrEmptyCommit    = errors.New("commit carries no change")
)

// EventKind describes what changed on a card
type EventKind string

const (
	EventCreated EventKind = "created"
	EventDeleted EventKind = "deleted"
	EventPhoto   EventKind = "photo"
	EventCrop    EventKind = "crop"
	EventText    EventKind = "text"
	EventLayout  EventKind = "layout"
	EventReset   EventKind = "reset"
)

// Event is published after every successful mutation
type Event struct {
	CardID string    `json:"cardId"`
	Kind   EventKind `json:"kind"`
}

// PhotoUpdate carries the photo fields an interaction changed
type PhotoUpdate struct {
	Position *types.Point     `json:"position,omitempty"`
	Size     *types.PhotoSize `json:"size,omitempty"`
}

// TextUpdate carries the text label fields an edit changed
type TextUpdate struct {
	Position *types.Point      `json:"position,omitempty"`
	Style    *types.StylePatch `json:"style,omitempty"`
}

// Store holds cards in memory
type Store struct {
	mu    sync.RWMutex
	cards map[string]*Card
	subs  []chan Event
	now   func() time.Time
	log   logrus.FieldLogger
}

// NewStore creates an empty store
func NewStore(log logrus.FieldLogger) *Store {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Store{
		cards: make(map[string]*Card),
		now:   time.Now,
		log:   log,
	}
}

// Create adds a card with the default layout
func (s *Store) Create() Card {
	now := s.now()
	c := &Card{
		ID:        uuid.NewString(),
		Layout:    DefaultLayout(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.cards[c.ID] = c
	out := c.clone()
	s.mu.Unlock()

	s.publish(c.ID, EventCreated)
	return out
}

// Get returns a copy of the card
func (s *Store) Get(id string) (Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	return c.clone(), nil
}

// List returns all cards, oldest first
func (s *Store) List() []Card {
	s.mu.RLock()
	out := make([]Card, 0, len(s.cards))
	for _, c := range s.cards {
		out = append(out, c.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes a card
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.cards[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	delete(s.cards, id)
	s.mu.Unlock()

	s.publish(id, EventDeleted)
	return nil
}

// mutate applies fn to the card under the write lock and publishes kind
// when fn succeeds.
func (s *Store) mutate(id string, kind EventKind, fn func(c *Card) error) (Card, error) {
	s.mu.Lock()
	c, ok := s.cards[id]
	if !ok {
		s.mu.Unlock()
		return Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	if err := fn(c); err != nil {
		s.mu.Unlock()
		return Card{}, err
	}
	c.UpdatedAt = s.now()
	out := c.clone()
	s.mu.Unlock()

	s.publish(id, kind)
	return out, nil
}

// UpdatePhoto sets the photo position and/or size. Absent fields are left
// untouched.
func (s *Store) UpdatePhoto(id string, u PhotoUpdate) (Card, error) {
	return s.mutate(id, EventLayout, func(c *Card) error {
		if u.Position != nil {
			c.PhotoPosition = *u.Position
		}
		if u.Size != nil {
			c.PhotoSize = *u.Size
		}
		return nil
	})
}

// UpdateText sets the position of a text element and merges the supplied
// style fields into its current style.
func (s *Store) UpdateText(el types.ElementType, id string, u TextUpdate) (Card, error) {
	if !el.IsText() {
		return Card{}, fmt.Errorf("%w: %q is not a text element", ErrUnknownElement, el)
	}
	return s.mutate(id, EventLayout, func(c *Card) error {
		pos, style := &c.NamePosition, &c.NameStyle
		if el == types.ElementTitle {
			pos, style = &c.TitlePosition, &c.TitleStyle
		}
		if u.Position != nil {
			*pos = *u.Position
		}
		if u.Style != nil {
			*style = style.Merge(*u.Style)
		}
		return nil
	})
}

// Apply writes an interaction commit to the card
func (s *Store) Apply(id string, commit coords.Commit) (Card, error) {
	switch {
	case commit.Position == nil && commit.Size == nil:
		return Card{}, ErrEmptyCommit
	case commit.Element == types.ElementPhoto:
		return s.UpdatePhoto(id, PhotoUpdate{Position: commit.Position, Size: commit.Size})
	case commit.Element.IsText():
		if commit.Size != nil {
			return Card{}, fmt.Errorf("%w: %s", coords.ErrNotResizable, commit.Element)
		}
		return s.UpdateText(commit.Element, id, TextUpdate{Position: commit.Position})
	}
	return Card{}, fmt.Errorf("%w: %q", ErrUnknownElement, commit.Element)
}

// Reset restores the default layout. Photo and text values are kept.
func (s *Store) Reset(id string) (Card, error) {
	return s.mutate(id, EventReset, func(c *Card) error {
		c.Layout = DefaultLayout()
		return nil
	})
}

// SetSource records a new upload and its normalized image. Any previous
// crop is dropped because it referred to the old image.
func (s *Store) SetSource(id string, src types.SourceRef, normalized types.Blob) (Card, error) {
	return s.mutate(id, EventPhoto, func(c *Card) error {
		c.Source = &src
		c.Normalized = &normalized
		c.Cropped = nil
		c.Crop = nil
		return nil
	})
}

// SetCropped stores the rasterized crop, which overrides the normalized
// image when drawing.
func (s *Store) SetCropped(id string, region types.CropRegion, cropped types.Blob) (Card, error) {
	return s.mutate(id, EventCrop, func(c *Card) error {
		if c.Normalized.Empty() {
			return fmt.Errorf("card %s has no photo to crop", id)
		}
		c.Cropped = &cropped
		c.Crop = &region
		return nil
	})
}

// ClearCrop drops the crop and falls back to the normalized image
func (s *Store) ClearCrop(id string) (Card, error) {
	return s.mutate(id, EventCrop, func(c *Card) error {
		c.Cropped = nil
		c.Crop = nil
		return nil
	})
}

// SetName sets the name label
func (s *Store) SetName(id, name string) (Card, error) {
	return s.mutate(id, EventText, func(c *Card) error {
		c.Name = name
		return nil
	})
}

// SetTitle sets the title label
func (s *Store) SetTitle(id, title string) (Card, error) {
	return s.mutate(id, EventText, func(c *Card) error {
		c.Title = title
		return nil
	})
}

// Subscribe returns a channel receiving an Event for every mutation. Sends
// never block; a subscriber that falls behind loses events.
func (s *Store) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, max(buffer, 1))
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) publish(id string, kind EventKind) {
	ev := Event{CardID: id, Kind: kind}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.WithFields(logrus.Fields{"card": id, "kind": kind}).Debug("dropped layout event")
		}
	}
}
