// Package ingredients converts a product's ingredient rows, stored as a flat
// parent-referencing adjacency list, to and from the nested IngredientNode
// forest used by the API.
package ingredients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	applog "nutrilab/internal/log"
	"nutrilab/internal/schema"
	"nutrilab/models"
)

// ErrCycle reports an ingredient that is its own ancestor.
var ErrCycle = errors.New("ingredients: cycle in ingredient tree")

// LoadTree rebuilds the ingredient forest of a product. Rows are read once in
// id order and linked in a second linear pass, so arbitrarily deep trees never
// recurse. An unknown product yields an empty forest.
func LoadTree(ctx context.Context, db *gorm.DB, barcode string) ([]*schema.IngredientNode, error) {
	var rows []models.Ingredient
	if err := db.WithContext(ctx).
		Where("product_barcode = ?", barcode).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load ingredients for %s: %w", barcode, err)
	}
	return BuildTree(ctx, rows)
}

// BuildTree links rows into a forest. Sibling order follows row order. Rows
// whose parent is not part of rows are promoted to roots.
func BuildTree(ctx context.Context, rows []models.Ingredient) ([]*schema.IngredientNode, error) {
	nodes := make(map[uint]*schema.IngredientNode, len(rows))
	for _, row := range rows {
		nodes[row.ID] = &schema.IngredientNode{
			Name:       row.Name,
			Percentage: copyFloat(row.Percentage),
		}
	}

	roots := make([]*schema.IngredientNode, 0)
	for _, row := range rows {
		node := nodes[row.ID]
		if row.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*row.ParentID]
		if !ok {
			applog.Warn(ctx, "ingredient parent missing, promoting to root",
				"id", row.ID,
				"parentID", *row.ParentID,
				"product", row.ProductBarcode,
			)
			roots = append(roots, node)
			continue
		}
		parent.Ingredients = append(parent.Ingredients, node)
	}

	if reachable := Count(roots); reachable != len(rows) {
		return nil, fmt.Errorf("%w: %d of %d rows unreachable from a root", ErrCycle, len(rows)-reachable, len(rows))
	}
	return roots, nil
}

// Count returns the number of nodes in the forest.
func Count(nodes []*schema.IngredientNode) int {
	count := 0
	stack := append([]*schema.IngredientNode(nil), nodes...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}
		count++
		stack = append(stack, node.Ingredients...)
	}
	return count
}

// SaveTree upserts nodes under parent for the product in one transaction.
// Rows are matched on (product, parent, exact name): matches are updated in
// place, everything else is inserted. Saving the same tree twice therefore
// leaves one row per node. Children are written recursively beneath the row
// of their parent.
func SaveTree(ctx context.Context, db *gorm.DB, nodes []*schema.IngredientNode, barcode string, parent *uint) error {
	if len(nodes) == 0 {
		return nil
	}
	_, err := saveTree(ctx, db, nodes, barcode, parent)
	return err
}

// ReplaceTree makes nodes the complete ingredient forest of the product.
// Existing rows are reused through SaveTree matching and rows the new forest
// does not mention are deleted, all in one transaction.
func ReplaceTree(ctx context.Context, db *gorm.DB, barcode string, nodes []*schema.IngredientNode) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var touched []uint
		if len(nodes) > 0 {
			ids, err := saveTree(ctx, tx, nodes, barcode, nil)
			if err != nil {
				return err
			}
			touched = ids
		}

		stale := tx.Where("product_barcode = ?", barcode)
		if len(touched) > 0 {
			stale = stale.Where("id NOT IN ?", touched)
		}
		result := stale.Delete(&models.Ingredient{})
		if result.Error != nil {
			return fmt.Errorf("prune ingredients for %s: %w", barcode, result.Error)
		}
		if result.RowsAffected > 0 {
			applog.Debug(ctx, "pruned stale ingredients", "product", barcode, "rows", result.RowsAffected)
		}
		return nil
	})
}

func saveTree(ctx context.Context, db *gorm.DB, nodes []*schema.IngredientNode, barcode string, parent *uint) ([]uint, error) {
	var touched []uint
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refs, err := loadReferenceIDs(tx)
		if err != nil {
			return err
		}
		w := &treeWriter{
			tx:      tx,
			barcode: barcode,
			refs:    refs,
			onPath:  make(map[*schema.IngredientNode]struct{}),
		}
		if err := w.write(nodes, parent); err != nil {
			return err
		}
		touched = w.touched
		return nil
	})
	if err != nil {
		return nil, err
	}
	applog.Debug(ctx, "ingredient tree saved", "product", barcode, "rows", len(touched))
	return touched, nil
}

type treeWriter struct {
	tx      *gorm.DB
	barcode string
	refs    map[string]uint
	onPath  map[*schema.IngredientNode]struct{}
	touched []uint
}

func (w *treeWriter) write(nodes []*schema.IngredientNode, parent *uint) error {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if _, ok := w.onPath[node]; ok {
			return fmt.Errorf("%w: %q appears beneath itself", ErrCycle, node.Name)
		}

		row, err := w.upsert(node, parent)
		if err != nil {
			return err
		}
		w.touched = append(w.touched, row.ID)

		if len(node.Ingredients) == 0 {
			continue
		}
		w.onPath[node] = struct{}{}
		err = w.write(node.Ingredients, &row.ID)
		delete(w.onPath, node)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *treeWriter) upsert(node *schema.IngredientNode, parent *uint) (models.Ingredient, error) {
	var matches []models.Ingredient
	query := w.tx.Where("product_barcode = ? AND name = ?", w.barcode, node.Name)
	if parent == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parent)
	}
	if err := query.Order("id asc").Limit(1).Find(&matches).Error; err != nil {
		return models.Ingredient{}, fmt.Errorf("find ingredient %q: %w", node.Name, err)
	}

	var refID *uint
	if id, ok := w.refs[normalizeName(node.Name)]; ok {
		refID = &id
	}

	if len(matches) == 1 {
		row := matches[0]
		updates := map[string]any{
			"percentage":   nullableFloat(node.Percentage),
			"reference_id": nullableUint(refID),
		}
		if err := w.tx.Model(&row).Updates(updates).Error; err != nil {
			return models.Ingredient{}, fmt.Errorf("update ingredient %q: %w", node.Name, err)
		}
		row.Percentage = copyFloat(node.Percentage)
		row.ReferenceID = refID
		return row, nil
	}

	row := models.Ingredient{
		ProductBarcode: w.barcode,
		ParentID:       copyUint(parent),
		Name:           node.Name,
		Percentage:     copyFloat(node.Percentage),
		ReferenceID:    refID,
	}
	if err := w.tx.Create(&row).Error; err != nil {
		return models.Ingredient{}, fmt.Errorf("create ingredient %q: %w", node.Name, err)
	}
	return row, nil
}

// loadReferenceIDs maps normalized catalog names to reference ids. The lowest
// id wins when two entries differ only by case.
func loadReferenceIDs(tx *gorm.DB) (map[string]uint, error) {
	var refs []models.IngredientRef
	if err := tx.Order("id asc").Find(&refs).Error; err != nil {
		return nil, fmt.Errorf("load ingredient references: %w", err)
	}
	ids := make(map[string]uint, len(refs))
	for _, ref := range refs {
		key := normalizeName(ref.Name)
		if _, exists := ids[key]; !exists {
			ids[key] = ref.ID
		}
	}
	return ids, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyUint(v *uint) *uint {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableUint(v *uint) any {
	if v == nil {
		return nil
	}
	return *v
}
