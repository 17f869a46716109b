//go:build unit

package money_test

import (
	"testing"

	"storefront/internal/pkg/money"

	"github.com/stretchr/testify/assert"
)

func TestFromFloat(t *testing.T) {
	cases := []struct {
		name  string
		price float64
		want  money.Cents
	}{
		{name: "whole dollars", price: 10.00, want: 1000},
		{name: "cents", price: 19.99, want: 1999},
		{name: "rounds half up", price: 0.005, want: 1},
		{name: "binary float artifact", price: 29.99, want: 2999},
		{name: "zero", price: 0, want: 0},
		{name: "third of a cent rounds down", price: 1.333, want: 133},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, money.FromFloat(tc.price))
		})
	}
}

func TestFloat(t *testing.T) {
	assert.InDelta(t, 19.99, money.Cents(1999).Float(), 1e-9)
	assert.Equal(t, int64(1999), money.Cents(1999).Int64())
}
