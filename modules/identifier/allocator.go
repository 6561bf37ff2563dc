// Package identifier derives human-readable unique identifiers (slugs and
// product codes) and allocates a free one against the catalog store.
package identifier

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/example/catalog-service/domain/catalog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxAttempts bounds the number of candidates probed per allocation.
const MaxAttempts = 1000

// codeBaseLength is the number of characters kept for a product code base.
const codeBaseLength = 10

// ExistsFunc reports whether candidate is already taken. Implementations
// exclude the entity being updated.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// fold strips diacritics so "Crème" slugs as "creme".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slug lower-cases name, drops every character outside [a-z0-9] and joins
// the remaining words with "-".
func Slug(name string) (string, error) {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(fold(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if sep && b.Len() > 0 {
				b.WriteByte('-')
			}
			sep = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_':
			sep = true
		}
	}
	if b.Len() == 0 {
		return "", catalog.Validation("name %q does not produce a usable slug", name)
	}
	return b.String(), nil
}

// ProductCodeBase keeps the first ten alphanumerics of name, upper-cased.
func ProductCodeBase(name string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(fold(name)) {
		if b.Len() == codeBaseLength {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", catalog.Validation("name %q does not produce a usable product code", name)
	}
	return b.String(), nil
}

// Allocate returns base if free, otherwise the first free base-1, base-2...
func Allocate(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	return probe(ctx, exists, func(i int) string {
		if i == 0 {
			return base
		}
		return fmt.Sprintf("%s-%d", base, i)
	})
}

// AllocateCode returns the first free BASE-001, BASE-002... The counter
// keeps growing past 999.
func AllocateCode(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	return probe(ctx, exists, func(i int) string {
		return fmt.Sprintf("%s-%03d", base, i+1)
	})
}

func probe(ctx context.Context, exists ExistsFunc, candidate func(int) string) (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", catalog.StoreUnavailable("allocate identifier", err)
		}
		c := candidate(i)
		taken, err := exists(ctx, c)
		if err != nil {
			if catalog.KindOf(err) == catalog.KindStoreUnavailable {
				return "", err
			}
			return "", catalog.StoreUnavailable("allocate identifier", err)
		}
		if !taken {
			return c, nil
		}
	}
	return "", catalog.Validation("no free identifier after %d attempts", MaxAttempts)
}
