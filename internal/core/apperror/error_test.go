package apperror

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewEmptyOrder(), http.StatusBadRequest},
		{NewInvalidQuantity("quantity", 0), http.StatusBadRequest},
		{NewOutOfStock(42, 3, 1), http.StatusUnprocessableEntity},
		{NewInsufficientStock(42, 1, 3, 1), http.StatusUnprocessableEntity},
		{NewInvalidTransition("order", "delivered", "cancelled"), http.StatusConflict},
		{NewContention("inventory", nil), http.StatusConflict},
		{NewNotFound("order", 1), http.StatusNotFound},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetHTTPStatus(tt.err), tt.err.Error())
	}
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("lock inventory records: %w", NewContention("inventory", nil))
	assert.True(t, IsContention(err))
	assert.False(t, IsNotFound(err))

	oos := NewOutOfStock(42, 3, 1)
	assert.Equal(t, "Product 42 is out of stock", oos.Message)
	assert.Equal(t, int64(42), oos.Details["product_id"])

	conflict := &AppError{Code: CodeContention}
	assert.False(t, IsContention(conflict), "contention must be marked retryable")
}
