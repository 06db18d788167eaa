package entity

import (
	"encoding/json"
	"fmt"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/types"
)

// ProductKind discriminates the catalog variant of a product.
type ProductKind string

const (
	ProductKindGame    ProductKind = "game"
	ProductKindConsole ProductKind = "console"
)

// ProductAttributes is the kind-specific part of a product.
// It is a closed set: only GameAttributes and ConsoleAttributes implement it.
type ProductAttributes interface {
	Kind() ProductKind
	sealed()
}

// GameAttributes describes a game title.
type GameAttributes struct {
	Platform    string   `json:"platform"`
	Genres      []string `json:"genres,omitempty"`
	Developer   string   `json:"developer,omitempty"`
	ReleaseYear int      `json:"releaseYear,omitempty"`
}

func (GameAttributes) Kind() ProductKind { return ProductKindGame }
func (GameAttributes) sealed()           {}

// ConsoleAttributes describes a console.
type ConsoleAttributes struct {
	Manufacturer string `json:"manufacturer"`
	StorageGB    int    `json:"storageGb,omitempty"`
}

func (ConsoleAttributes) Kind() ProductKind { return ProductKindConsole }
func (ConsoleAttributes) sealed()           {}

// Product is the slice of catalog data the core consumes.
// Inventory and order logic only look at ID and Price.
type Product struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Price      types.Money       `json:"price"`
	Attributes ProductAttributes `json:"-"`
}

// Kind returns the product variant.
func (p Product) Kind() ProductKind {
	if p.Attributes == nil {
		return ""
	}
	return p.Attributes.Kind()
}

// Validate checks the catalog entry before it is stored.
func (p Product) Validate() error {
	if p.ID <= 0 {
		return apperror.NewValidation("product id must be positive").WithDetail("field", "id")
	}
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.Price.IsNegative() {
		return apperror.NewValidation("price must not be negative").WithDetail("field", "price")
	}
	if p.Attributes == nil {
		return apperror.NewValidation("product kind is required").WithDetail("field", "kind")
	}
	return nil
}

// MarshalAttributes encodes the variant payload for storage.
func MarshalAttributes(attrs ProductAttributes) (ProductKind, []byte, error) {
	if attrs == nil {
		return "", nil, fmt.Errorf("product attributes are nil")
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s attributes: %w", attrs.Kind(), err)
	}
	return attrs.Kind(), raw, nil
}

// UnmarshalAttributes decodes a stored variant payload by its kind tag.
func UnmarshalAttributes(kind ProductKind, raw []byte) (ProductAttributes, error) {
	switch kind {
	case ProductKindGame:
		var attrs GameAttributes
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &attrs); err != nil {
				return nil, fmt.Errorf("unmarshal game attributes: %w", err)
			}
		}
		return attrs, nil
	case ProductKindConsole:
		var attrs ConsoleAttributes
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &attrs); err != nil {
				return nil, fmt.Errorf("unmarshal console attributes: %w", err)
			}
		}
		return attrs, nil
	default:
		return nil, fmt.Errorf("unknown product kind %q", kind)
	}
}

// Branch is a physical store holding stock.
type Branch struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address"`
}

// Supplier provides restock purchases.
type Supplier struct {
	ID     int64  `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

type productJSON struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Price      types.Money       `json:"price"`
	Kind       ProductKind       `json:"kind"`
	Attributes ProductAttributes `json:"attributes"`
}

// MarshalJSON renders the variant with its kind tag.
func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(productJSON{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Kind:       p.Kind(),
		Attributes: p.Attributes,
	})
}
