package ingredients

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"nutrilab/internal/schema"
	"nutrilab/models"
)

// ReferenceSet holds canonical ingredient names, trimmed and lower-cased.
type ReferenceSet map[string]struct{}

// NewReferenceSet builds a set from raw catalog names.
func NewReferenceSet(names ...string) ReferenceSet {
	set := make(ReferenceSet, len(names))
	for _, name := range names {
		set[normalizeName(name)] = struct{}{}
	}
	return set
}

// LoadReferenceSet reads the whole reference catalog in one query so a tree
// can be annotated without a lookup per ingredient.
func LoadReferenceSet(ctx context.Context, db *gorm.DB) (ReferenceSet, error) {
	var names []string
	if err := db.WithContext(ctx).Model(&models.IngredientRef{}).Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("load ingredient reference names: %w", err)
	}
	return NewReferenceSet(names...), nil
}

// Has reports whether name matches a reference, ignoring case and surrounding space.
func (s ReferenceSet) Has(name string) bool {
	_, ok := s[normalizeName(name)]
	return ok
}

// Annotate returns a copy of node and its descendants with HasReference set
// from refs. The input is not modified.
func Annotate(node *schema.IngredientNode, refs ReferenceSet) *schema.IngredientNode {
	if node == nil {
		return nil
	}

	type pending struct {
		src *schema.IngredientNode
		dst *schema.IngredientNode
	}

	root := &schema.IngredientNode{}
	stack := []pending{{src: node, dst: root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		p.dst.Name = p.src.Name
		p.dst.Percentage = copyFloat(p.src.Percentage)
		p.dst.HasReference = refs.Has(p.src.Name)

		if len(p.src.Ingredients) == 0 {
			continue
		}
		p.dst.Ingredients = make([]*schema.IngredientNode, 0, len(p.src.Ingredients))
		for _, child := range p.src.Ingredients {
			if child == nil {
				continue
			}
			copied := &schema.IngredientNode{}
			p.dst.Ingredients = append(p.dst.Ingredients, copied)
			stack = append(stack, pending{src: child, dst: copied})
		}
	}
	return root
}

// AnnotateAll applies Annotate to every root of a forest.
func AnnotateAll(nodes []*schema.IngredientNode, refs ReferenceSet) []*schema.IngredientNode {
	if nodes == nil {
		return nil
	}
	annotated := make([]*schema.IngredientNode, 0, len(nodes))
	for _, node := range nodes {
		if node == nil {
			continue
		}
		annotated = append(annotated, Annotate(node, refs))
	}
	return annotated
}
