package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gamestore/internal/core/id"
	"gamestore/internal/core/types"
	"gamestore/internal/domain/offlinesale"
)

type Stamped struct {
	CreatedAt time.Time `db:"created_at"`
}

type withEmbedded struct {
	Stamped
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	Skipped string `db:"-"`
	NoTag   string
}

func TestExtractDBColumns(t *testing.T) {
	assert.Equal(t, []string{"created_at", "id", "name"}, ExtractDBColumns[withEmbedded]())
	assert.Equal(t,
		[]string{"id", "branch_id", "product_id", "quantity", "unit_price", "amount", "actor_id", "sold_at"},
		ExtractDBColumns[offlinesale.Sale]())
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	m := StructToMap(&withEmbedded{Stamped: Stamped{CreatedAt: now}, ID: 7, Name: "x", Skipped: "y"})
	assert.Equal(t, map[string]any{"created_at": now, "id": int64(7), "name": "x"}, m)

	sale := offlinesale.Sale{ID: id.New(), BranchID: 1, ProductID: 42, Quantity: 2, UnitPrice: types.MustMoney("1.50")}
	sm := StructToMap(sale)
	assert.Equal(t, sale.ID, sm["id"])
	assert.Equal(t, 2, sm["quantity"])
	assert.Len(t, sm, 8)

	assert.Nil(t, StructToMap(42))
}
