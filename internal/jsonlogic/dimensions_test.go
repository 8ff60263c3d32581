package jsonlogic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func dimensionsOf(pairs ...any) *Dimensions {
	d := NewDimensions()
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Set(pairs[i].(string), pairs[i+1])
	}
	return d
}

func TestOverlapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b *Dimensions
		want bool
	}{
		{name: "Should overlap when both are empty", a: dimensionsOf(), b: dimensionsOf(), want: true},
		{name: "Should overlap with an empty context", a: dimensionsOf("city", "NY"), b: dimensionsOf(), want: true},
		{name: "Should overlap on disjoint dimensions", a: dimensionsOf("city", "NY"), b: dimensionsOf("os", "ios"), want: true},
		{name: "Should overlap on equal shared values", a: dimensionsOf("city", "NY", "os", "ios"), b: dimensionsOf("city", "NY"), want: true},
		{name: "Should not overlap on a differing shared value", a: dimensionsOf("city", "NY", "os", "ios"), b: dimensionsOf("os", "android"), want: false},
		{name: "Should compare numbers by value", a: dimensionsOf("version", float64(3)), b: dimensionsOf("version", json.Number("3")), want: true},
		{name: "Should distinguish types", a: dimensionsOf("version", "3"), b: dimensionsOf("version", float64(3)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, Overlapping(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlapping(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}
