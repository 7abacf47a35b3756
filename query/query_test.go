package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docgo/document"
)

func TestMatch(t *testing.T) {
	doc := document.Document{
		"_id":  "u1",
		"name": "Ada",
		"age":  float64(36),
		"address": map[string]any{
			"city": "London",
		},
	}

	tests := []struct {
		name string
		q    *Query
		want bool
	}{
		{"All", All(), true},
		{"EqString", Eq("name", "Ada"), true},
		{"EqStringMiss", Eq("name", "Bob"), false},
		{"EqNumberCoerced", Eq("age", 36), true},
		{"Ne", Ne("name", "Bob"), true},
		{"NeMiss", Ne("name", "Ada"), false},
		{"Gt", Gt("age", 30), true},
		{"GtMiss", Gt("age", 36), false},
		{"Gte", Gte("age", 36), true},
		{"Lt", Lt("age", 40), true},
		{"Lte", Lte("age", 36), true},
		{"In", In("name", "Bob", "Ada"), true},
		{"InMiss", In("name", "Bob", "Carol"), false},
		{"NestedField", Eq("address.city", "London"), true},
		{"MissingField", Eq("height", 180), false},
		{"ByID", ByID("u1"), true},
		{"ByIDMiss", ByID("u2"), false},
		{"IncomparableTypes", Gt("name", 5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Match(doc))
		})
	}
}

func TestCompare(t *testing.T) {
	t.Run("NumericCoercion", func(t *testing.T) {
		c, ok := Compare(int64(5), float64(5))
		require.True(t, ok)
		assert.Equal(t, 0, c)

		c, ok = Compare(3, 4.5)
		require.True(t, ok)
		assert.Equal(t, -1, c)
	})

	t.Run("Strings", func(t *testing.T) {
		c, ok := Compare("a", "b")
		require.True(t, ok)
		assert.Equal(t, -1, c)
	})

	t.Run("Bools", func(t *testing.T) {
		c, ok := Compare(false, true)
		require.True(t, ok)
		assert.Equal(t, -1, c)
	})

	t.Run("Nils", func(t *testing.T) {
		c, ok := Compare(nil, nil)
		require.True(t, ok)
		assert.Equal(t, 0, c)
	})

	t.Run("MixedTypes", func(t *testing.T) {
		_, ok := Compare("a", 1)
		assert.False(t, ok)
	})
}

func TestString(t *testing.T) {
	assert.Equal(t, "all", All().String())
	assert.Equal(t, "age gte 18", Gte("age", 18).String())
}
