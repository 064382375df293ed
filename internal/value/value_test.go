package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null null", None, Null{}, true},
		{"null int", None, Int(0), false},
		{"bool equal", Bool(true), Bool(true), true},
		{"bool unequal", Bool(true), Bool(false), false},
		{"int equal", Int(42), Int(42), true},
		{"int unequal", Int(42), Int(43), false},
		{"int vs float", Int(1), Float(1), false},
		{"float equal", Float(2.5), Float(2.5), true},
		{"string equal", String("a"), String("a"), true},
		{"string unequal", String("a"), String("b"), false},
		{"empty lists", List{}, List{}, true},
		{"list equal", List{Int(1), String("x")}, List{Int(1), String("x")}, true},
		{"list length", List{Int(1)}, List{Int(1), Int(2)}, false},
		{"list order", List{Int(1), Int(2)}, List{Int(2), Int(1)}, false},
		{"record equal", Record{"a": Int(1), "b": Bool(true)}, Record{"b": Bool(true), "a": Int(1)}, true},
		{"record missing key", Record{"a": Int(1)}, Record{"b": Int(1)}, false},
		{"record extra key", Record{"a": Int(1)}, Record{"a": Int(1), "b": Int(2)}, false},
		{"nested", Record{"xs": List{Record{"y": Float(0.5)}}}, Record{"xs": List{Record{"y": Float(0.5)}}}, true},
		{"kind mismatch", List{}, Record{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "Equal must be symmetric")
		})
	}
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+E000 sorts after a surrogate pair in UTF-16 but before it in UTF-8.
	rec := Record{
		"": Int(1),
		"𐀀": Int(2), // U+10000, UTF-16 0xD800 0xDC00
		"a": Int(3),
	}
	assert.Equal(t, []string{"a", "𐀀", ""}, rec.SortedKeys())
}

func TestFloatIsFinite(t *testing.T) {
	assert.True(t, Float(0).IsFinite())
	assert.True(t, Float(-12.75).IsFinite())
	assert.False(t, Float(math.NaN()).IsFinite())
	assert.False(t, Float(math.Inf(1)).IsFinite())
	assert.False(t, Float(math.Inf(-1)).IsFinite())
}
