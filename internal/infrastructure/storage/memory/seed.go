package memory

import (
	"context"
	"fmt"
	"time"

	"gamestore/internal/core/entity"
	"gamestore/internal/core/id"
	"gamestore/internal/core/types"
)

// DemoData is the reference data and opening stock of a demo store.
type DemoData struct {
	Branches  []entity.Branch
	Suppliers []entity.Supplier
	Products  []entity.Product
	// Stock maps a key to its opening quantity.
	Stock map[entity.StockKey]int
}

// Demo returns a small two-branch store with games and consoles.
func Demo() DemoData {
	return DemoData{
		Branches: []entity.Branch{
			{ID: 1, Name: "Downtown", Address: "12 Market Street"},
			{ID: 2, Name: "Riverside Mall", Address: "400 River Road"},
		},
		Suppliers: []entity.Supplier{
			{ID: 7, Name: "Pixel Distribution", Active: true},
			{ID: 8, Name: "Console Wholesale", Active: true},
		},
		Products: []entity.Product{
			{
				ID: 42, Name: "Starfall Odyssey", Price: types.MustMoney("59.99"),
				Attributes: entity.GameAttributes{Platform: "PS5", Genres: []string{"RPG"}, Developer: "Nova Works", ReleaseYear: 2024},
			},
			{
				ID: 43, Name: "Kart Legends", Price: types.MustMoney("39.99"),
				Attributes: entity.GameAttributes{Platform: "Switch", Genres: []string{"Racing"}, Developer: "Loop Studio", ReleaseYear: 2023},
			},
			{
				ID: 100, Name: "PlayStation 5", Price: types.MustMoney("499.00"),
				Attributes: entity.ConsoleAttributes{Manufacturer: "Sony", StorageGB: 825},
			},
			{
				ID: 101, Name: "Nintendo Switch OLED", Price: types.MustMoney("349.00"),
				Attributes: entity.ConsoleAttributes{Manufacturer: "Nintendo", StorageGB: 64},
			},
		},
		Stock: map[entity.StockKey]int{
			{ProductID: 42, BranchID: 1}:  25,
			{ProductID: 42, BranchID: 2}:  8,
			{ProductID: 43, BranchID: 1}:  12,
			{ProductID: 100, BranchID: 1}: 5,
			{ProductID: 100, BranchID: 2}: 3,
			{ProductID: 101, BranchID: 2}: 6,
		},
	}
}

// Load stores reference data and opening balances. Each opening balance is
// written with its stock change so the log replays to the stored quantity.
func (s *Store) Load(ctx context.Context, data DemoData) error {
	cat := s.Catalog()
	for _, b := range data.Branches {
		if err := cat.SaveBranch(ctx, b); err != nil {
			return fmt.Errorf("save branch %d: %w", b.ID, err)
		}
	}
	for _, sup := range data.Suppliers {
		if err := cat.SaveSupplier(ctx, sup); err != nil {
			return fmt.Errorf("save supplier %d: %w", sup.ID, err)
		}
	}
	for _, p := range data.Products {
		if err := cat.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("save product %d: %w", p.ID, err)
		}
	}

	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range sortedStockKeys(data.Stock) {
		qty := data.Stock[key]
		rec := entity.NewInventoryRecord(key)
		old := 0
		if existing, ok := s.records[key]; ok {
			rec = existing
			old = existing.Quantity
		}
		rec.Quantity = old + qty
		rec.LastUpdate = now
		s.records[key] = rec
		s.changes = append(s.changes, entity.StockChange{
			ID:          id.New(),
			Seq:         s.seq.Add(1),
			ProductID:   key.ProductID,
			BranchID:    key.BranchID,
			OldQuantity: old,
			NewQuantity: rec.Quantity,
			Reason:      entity.ReasonOpeningBalance,
			ActorID:     entity.SystemActor().ID(),
			ChangedAt:   now,
		})
	}
	return nil
}

// NewSeeded returns a store loaded with Demo data.
func NewSeeded(opts ...Option) *Store {
	s := NewStore(opts...)
	if err := s.Load(context.Background(), Demo()); err != nil {
		panic(err)
	}
	return s
}

func sortedStockKeys(m map[entity.StockKey]int) []entity.StockKey {
	keys := make([]entity.StockKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return entity.SortedKeys(keys)
}
