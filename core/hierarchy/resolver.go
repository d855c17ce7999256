package hierarchy

import (
	"context"
	"fmt"
	"sort"
)

// Source provides the raw override rows the resolver works over. The store
// is expected to pre-filter rows to the selector's scope chain; the
// resolver owns the fallback semantics.
type Source interface {
	// ListOverrides returns every row applicable to the selector's scope
	// chain for the active category, across all levels up to GLOBAL.
	ListOverrides(ctx context.Context, sel ScopeSelector) ([]StoredOverride, error)
	// ListScopedOverrides returns all non-global rows for a customer and
	// category, for flag computation.
	ListScopedOverrides(ctx context.Context, customerID, category string) ([]StoredOverride, error)
	// ListNodes returns the candidate node names at a level under the given
	// parents.
	ListNodes(ctx context.Context, customerID string, level Level, organization, site string) ([]string, error)
}

type Resolver struct {
	src Source
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// ResolveOverrides walks each property of the active category from the most
// specific level the selector reaches up to GLOBAL and returns the nearest
// defined value, with the next-less-specific value recorded as the parent.
// GLOBAL terminates the chain for every property of a well-formed category.
func (r *Resolver) ResolveOverrides(ctx context.Context, sel ScopeSelector) ([]OverrideRow, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.src.ListOverrides(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}

	type propKey struct {
		section  string
		property string
	}
	groups := map[propKey][]StoredOverride{}
	order := []propKey{}
	for _, row := range rows {
		if !sel.Includes(row.Level) || !row.Level.Valid() {
			continue
		}
		k := propKey{section: row.Section, property: row.Property}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], row)
	}

	out := make([]OverrideRow, 0, len(order))
	for _, k := range order {
		candidates := groups[k]
		// Deepest level wins; equal depth resolved by insertion order,
		// last writer first (storage serializes concurrent writers).
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Level.Depth() != candidates[j].Level.Depth() {
				return candidates[i].Level.Depth() > candidates[j].Level.Depth()
			}
			return candidates[i].ConfigID > candidates[j].ConfigID
		})
		winner := candidates[0]
		row := OverrideRow{
			ConfigID:    winner.ConfigID,
			Section:     winner.Section,
			Property:    winner.Property,
			Value:       winner.Value,
			SourceLevel: winner.Level,
			Sort:        winner.Sort,
		}
		for _, c := range candidates[1:] {
			if c.Level.Depth() < winner.Level.Depth() {
				v := c.Value
				id := c.ConfigID
				row.ParentValue = &v
				row.ParentLevel = c.Level
				row.ParentConfigID = &id
				break
			}
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sort != out[j].Sort {
			return out[i].Sort.Less(out[j].Sort)
		}
		return out[i].ConfigID < out[j].ConfigID
	})
	return out, nil
}
