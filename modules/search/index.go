// Package search maintains a denormalized product index used for ranked
// text search. The index is eventually consistent with the catalog store;
// callers fall back to substring matching when it returns nothing.
package search

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/example/catalog-service/domain/catalog"
)

// Document is the indexed projection of a product.
type Document struct {
	ProductID     string `gorm:"primaryKey;size:36"`
	Name          string `gorm:"size:255"`
	NameTerms     string `gorm:"type:text"`
	TagTerms      string `gorm:"type:text"`
	BodyTerms     string `gorm:"type:text"`
	CategoryID    string `gorm:"size:36;index"`
	SubCategoryID string `gorm:"size:36;index"`
	Active        bool   `gorm:"index"`
	Hot           bool
	BestSeller    bool
	Featured      bool
	CreatedAt     time.Time `gorm:"index"`
}

// TableName implements gorm's tabler.
func (Document) TableName() string {
	return "product_search_documents"
}

// NewDocument projects p into a search document.
func NewDocument(p *catalog.Product) Document {
	doc := Document{
		ProductID:  p.ID,
		Name:       p.Name,
		NameTerms:  joinTerms(Tokenize(p.Name)),
		TagTerms:   joinTerms(Tokenize(strings.Join(p.Tags, " "))),
		BodyTerms:  joinTerms(Tokenize(p.Brand + " " + p.Description)),
		Active:     p.Status == catalog.StatusActive,
		Hot:        p.IsHotProduct,
		BestSeller: p.IsBestSeller,
		Featured:   p.IsFeatured,
		CreatedAt:  p.CreatedAt,
	}
	if p.CategoryID != nil {
		doc.CategoryID = *p.CategoryID
	}
	if p.SubCategoryID != nil {
		doc.SubCategoryID = *p.SubCategoryID
	}
	return doc
}

// Query is a ranked search request.
type Query struct {
	Text         string
	CategoryIDs  []string
	HotOnly      bool
	BestOnly     bool
	FeaturedOnly bool
	Offset       int
	Limit        int
}

// Result is one page of ranked product ids.
type Result struct {
	ProductIDs []string
	Total      int64
}

// Index stores and queries search documents.
type Index interface {
	Upsert(ctx context.Context, docs ...Document) error
	Delete(ctx context.Context, productIDs ...string) error
	Search(ctx context.Context, q Query) (Result, error)
	Reset(ctx context.Context) error
}

// Tokenize lower-cases s and splits it into alphanumeric terms of at least
// two characters. Duplicates are removed, order is kept.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// joinTerms stores terms space-delimited with a leading and trailing space
// so a whole-term match is a LIKE on " term".
func joinTerms(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	return " " + strings.Join(terms, " ") + " "
}

const (
	nameWeight = 3
	tagWeight  = 2
	bodyWeight = 1
)

// score ranks doc for terms. Whole-term matches count fully, prefix matches
// half.
func score(doc Document, terms []string) float64 {
	var total float64
	for _, t := range terms {
		total += fieldScore(doc.NameTerms, t) * nameWeight
		total += fieldScore(doc.TagTerms, t) * tagWeight
		total += fieldScore(doc.BodyTerms, t) * bodyWeight
	}
	return total
}

func fieldScore(field, term string) float64 {
	switch {
	case strings.Contains(field, " "+term+" "):
		return 1
	case strings.Contains(field, " "+term):
		return 0.5
	default:
		return 0
	}
}

type scored struct {
	doc   Document
	score float64
}

// rank orders docs by score, then newest first, then id, dropping
// documents that match no term.
func rank(docs []Document, terms []string) []Document {
	hits := make([]scored, 0, len(docs))
	for _, d := range docs {
		if s := score(d, terms); s > 0 {
			hits = append(hits, scored{doc: d, score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if !hits[i].doc.CreatedAt.Equal(hits[j].doc.CreatedAt) {
			return hits[i].doc.CreatedAt.After(hits[j].doc.CreatedAt)
		}
		return hits[i].doc.ProductID < hits[j].doc.ProductID
	})
	out := make([]Document, len(hits))
	for i, h := range hits {
		out[i] = h.doc
	}
	return out
}
