package ingredients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrilab/internal/schema"
	"nutrilab/models"
)

func TestAnnotateMatchesIgnoringCaseAndSpace(t *testing.T) {
	tests := []struct {
		name string
		node string
		refs ReferenceSet
		want bool
	}{
		{name: "case differs", node: "Sugar", refs: NewReferenceSet("sugar", "salt"), want: true},
		{name: "empty catalog", node: "Sugar", refs: NewReferenceSet(), want: false},
		{name: "surrounding space", node: "  SUGAR ", refs: NewReferenceSet("sugar"), want: true},
		{name: "catalog entry padded", node: "salt", refs: NewReferenceSet(" Salt "), want: true},
		{name: "no match", node: "Flour", refs: NewReferenceSet("sugar", "salt"), want: false},
		{name: "nil set", node: "Sugar", refs: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Annotate(&schema.IngredientNode{Name: tt.node}, tt.refs)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.HasReference)
			assert.Equal(t, tt.node, got.Name)
		})
	}
}

func TestAnnotateIsRecursiveAndCopies(t *testing.T) {
	input := node("Chocolate", schema.Float(30),
		node("sugar", schema.Float(50)),
		node("Cocoa", nil,
			node("Salt", nil),
		),
	)
	refs := NewReferenceSet("Sugar", "salt")

	got := Annotate(input, refs)

	assert.False(t, got.HasReference)
	require.Len(t, got.Ingredients, 2)
	assert.True(t, got.Ingredients[0].HasReference)
	assert.False(t, got.Ingredients[1].HasReference)
	require.Len(t, got.Ingredients[1].Ingredients, 1)
	assert.True(t, got.Ingredients[1].Ingredients[0].HasReference)

	assert.Equal(t, 30.0, *got.Percentage)
	assert.NotSame(t, input.Percentage, got.Percentage)
	assert.NotSame(t, input.Ingredients[0], got.Ingredients[0])
	assert.False(t, input.Ingredients[0].HasReference, "input must be left untouched")
}

func TestAnnotateNil(t *testing.T) {
	assert.Nil(t, Annotate(nil, NewReferenceSet("sugar")))
	assert.Nil(t, AnnotateAll(nil, NewReferenceSet("sugar")))
}

func TestAnnotateAllSkipsNilRoots(t *testing.T) {
	got := AnnotateAll([]*schema.IngredientNode{node("Salt", nil), nil, node("Water", nil)}, NewReferenceSet("water"))
	require.Len(t, got, 2)
	assert.False(t, got[0].HasReference)
	assert.True(t, got[1].HasReference)
}

func TestLoadReferenceSet(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&[]models.IngredientRef{{Name: "Sugar"}, {Name: "Palm Oil"}}).Error)

	refs, err := LoadReferenceSet(context.Background(), db)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
	assert.True(t, refs.Has("sugar"))
	assert.True(t, refs.Has(" palm oil"))
	assert.False(t, refs.Has("salt"))
}
