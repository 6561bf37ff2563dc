package search

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxCandidates bounds the documents scored per query.
const maxCandidates = 2000

// GormIndex keeps documents in a table of the catalog database and ranks
// candidates in process.
type GormIndex struct {
	db *gorm.DB
}

var _ Index = (*GormIndex)(nil)

// NewGormIndex creates the index and migrates its table.
func NewGormIndex(db *gorm.DB) (*GormIndex, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate search index: %w", err)
	}
	return &GormIndex{db: db}, nil
}

// Upsert inserts or replaces documents.
func (i *GormIndex) Upsert(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	err := i.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		UpdateAll: true,
	}).Create(&docs).Error
	if err != nil {
		return fmt.Errorf("failed to upsert search documents: %w", err)
	}
	return nil
}

// Delete removes documents.
func (i *GormIndex) Delete(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	if err := i.db.WithContext(ctx).Where("product_id IN ?", productIDs).Delete(&Document{}).Error; err != nil {
		return fmt.Errorf("failed to delete search documents: %w", err)
	}
	return nil
}

// Reset removes every document.
func (i *GormIndex) Reset(ctx context.Context) error {
	if err := i.db.WithContext(ctx).Where("1 = 1").Delete(&Document{}).Error; err != nil {
		return fmt.Errorf("failed to reset search index: %w", err)
	}
	return nil
}

// Search returns active products matching any term of q.Text, best match
// first. An empty text matches nothing.
func (i *GormIndex) Search(ctx context.Context, q Query) (Result, error) {
	terms := Tokenize(q.Text)
	if len(terms) == 0 {
		return Result{}, nil
	}

	db := i.db.WithContext(ctx).Model(&Document{}).Where("active = ?", true)
	if len(q.CategoryIDs) > 0 {
		db = db.Where("(category_id IN ? OR sub_category_id IN ?)", q.CategoryIDs, q.CategoryIDs)
	}
	if q.HotOnly {
		db = db.Where("hot = ?", true)
	}
	if q.BestOnly {
		db = db.Where("best_seller = ?", true)
	}
	if q.FeaturedOnly {
		db = db.Where("featured = ?", true)
	}

	var match []string
	var args []any
	for _, t := range terms {
		pattern := "% " + escapeLike(t) + "%"
		match = append(match, `name_terms LIKE ? ESCAPE '\' OR tag_terms LIKE ? ESCAPE '\' OR body_terms LIKE ? ESCAPE '\'`)
		args = append(args, pattern, pattern, pattern)
	}
	db = db.Where("("+strings.Join(match, " OR ")+")", args...)

	var docs []Document
	if err := db.Order("created_at DESC").Limit(maxCandidates).Find(&docs).Error; err != nil {
		return Result{}, fmt.Errorf("failed to search index: %w", err)
	}

	ranked := rank(docs, terms)
	res := Result{Total: int64(len(ranked))}
	start := min(max(q.Offset, 0), len(ranked))
	end := len(ranked)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(ranked))
	}
	for _, d := range ranked[start:end] {
		res.ProductIDs = append(res.ProductIDs, d.ProductID)
	}
	return res, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
