// internal/models/entity.go
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType identifies what kind of parametric fact an Entity carries.
type EntityType string

const (
	EntityPrice       EntityType = "price"
	EntityRating      EntityType = "rating"
	EntityDate        EntityType = "date"
	EntityQuantity    EntityType = "quantity"
	EntityCategory    EntityType = "category"
	EntityBrand       EntityType = "brand"
	EntityLocation    EntityType = "location"
	EntityContact     EntityType = "contact"
	EntityURL         EntityType = "url"
	EntityTextContent EntityType = "text_content"
)

// Price kinds.
const (
	PriceMin   = "min"
	PriceMax   = "max"
	PriceExact = "exact"
	PriceRange = "range"
)

// Rating kinds.
const (
	RatingMin   = "min_rating"
	RatingExact = "exact_rating"
)

// Date kinds.
const (
	DateRelative = "relative"
	DateNamed    = "named_window"
	DateRecent   = "recent"
	DateToday    = "today"
)

// Quantity kinds.
const (
	QuantityAll     = "all"
	QuantityLimit   = "limit"
	QuantityMinimum = "minimum"
)

// EntityValue is the typed payload of an Entity. The concrete type always
// matches the owning entity's Type.
type EntityValue interface {
	EntityType() EntityType
}

type PriceValue struct {
	Kind   string  `json:"kind"`
	Amount float64 `json:"amount,omitempty"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
}

func (PriceValue) EntityType() EntityType { return EntityPrice }

type RatingValue struct {
	Kind  string  `json:"kind"`
	Value float64 `json:"value"`
}

func (RatingValue) EntityType() EntityType { return EntityRating }

// DateValue is a relative window resolved to an absolute cutoff.
type DateValue struct {
	Kind   string    `json:"kind"`
	Days   int       `json:"days"`
	Unit   string    `json:"unit,omitempty"`
	Cutoff time.Time `json:"cutoff"`
}

func (DateValue) EntityType() EntityType { return EntityDate }

type QuantityValue struct {
	Kind  string `json:"kind"`
	Value int    `json:"value,omitempty"`
	Item  string `json:"item"`
}

func (QuantityValue) EntityType() EntityType { return EntityQuantity }

type CategoryValue struct {
	Category string   `json:"category"`
	Matched  []string `json:"matched"`
}

func (CategoryValue) EntityType() EntityType { return EntityCategory }

// TextValue carries the free-form entity types (brand, location, contact,
// url, text_content) that have no structured shape of their own.
type TextValue struct {
	Type EntityType `json:"-"`
	Text string     `json:"text"`
}

func (v TextValue) EntityType() EntityType { return v.Type }

// Entity is one extracted parametric fact. Entities are never mutated after
// extraction.
type Entity struct {
	Type       EntityType  `json:"type"`
	Value      EntityValue `json:"value"`
	Confidence float64     `json:"confidence"`
	Context    string      `json:"context"`
}

// NewEntity builds an entity whose type is taken from the value.
func NewEntity(value EntityValue, confidence float64, context string) Entity {
	return Entity{
		Type:       value.EntityType(),
		Value:      value,
		Confidence: Clamp(confidence),
		Context:    context,
	}
}

// UnmarshalJSON decodes the value payload into the concrete type selected by
// the entity type.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       EntityType      `json:"type"`
		Value      json.RawMessage `json:"value"`
		Confidence float64         `json:"confidence"`
		Context    string          `json:"context"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	value, err := decodeEntityValue(raw.Type, raw.Value)
	if err != nil {
		return err
	}

	e.Type = raw.Type
	e.Value = value
	e.Confidence = raw.Confidence
	e.Context = raw.Context
	return nil
}

func decodeEntityValue(t EntityType, data json.RawMessage) (EntityValue, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	switch t {
	case EntityPrice:
		var v PriceValue
		err := json.Unmarshal(data, &v)
		return v, err
	case EntityRating:
		var v RatingValue
		err := json.Unmarshal(data, &v)
		return v, err
	case EntityDate:
		var v DateValue
		err := json.Unmarshal(data, &v)
		return v, err
	case EntityQuantity:
		var v QuantityValue
		err := json.Unmarshal(data, &v)
		return v, err
	case EntityCategory:
		var v CategoryValue
		err := json.Unmarshal(data, &v)
		return v, err
	case EntityBrand, EntityLocation, EntityContact, EntityURL, EntityTextContent:
		v := TextValue{Type: t}
		err := json.Unmarshal(data, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
}
