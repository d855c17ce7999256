package hierarchy

import (
	"context"
	"fmt"
	"strings"
)

// ResolveFlags computes overridden-here / overridden-below markers for the
// navigation dropdowns at the ORG, SITE, or AGENT level. Category is
// mandatory: flags are category-scoped. A selector missing an intermediate
// scope for the requested level (site flags without an organization, agent
// flags without a site) is "not applicable" and yields an empty result.
//
// One fetch, one pass: rows are indexed per node so a dropdown render never
// rescans the full subtree per candidate.
func (r *Resolver) ResolveFlags(ctx context.Context, level Level, sel ScopeSelector) ([]FlagRow, error) {
	if strings.TrimSpace(sel.CustomerID) == "" || strings.TrimSpace(sel.Category) == "" {
		return nil, ErrInvalidSelector
	}
	switch level {
	case LevelOrg:
	case LevelSite:
		if sel.Organization == "" {
			return []FlagRow{}, nil
		}
	case LevelAgent:
		if sel.Organization == "" || sel.Site == "" {
			return []FlagRow{}, nil
		}
	default:
		return nil, ErrInvalidLevel
	}

	names, err := r.src.ListNodes(ctx, sel.CustomerID, level, sel.Organization, sel.Site)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	rows, err := r.src.ListScopedOverrides(ctx, sel.CustomerID, sel.Category)
	if err != nil {
		return nil, fmt.Errorf("list scoped overrides: %w", err)
	}

	here := map[string]bool{}
	below := map[string]bool{}
	for _, row := range rows {
		switch level {
		case LevelOrg:
			switch row.Level {
			case LevelOrg:
				here[row.Organization] = true
			case LevelSite, LevelAgent:
				below[row.Organization] = true
			}
		case LevelSite:
			if row.Organization != sel.Organization {
				continue
			}
			switch row.Level {
			case LevelSite:
				here[row.Site] = true
			case LevelAgent:
				below[row.Site] = true
			}
		case LevelAgent:
			if row.Organization != sel.Organization || row.Site != sel.Site {
				continue
			}
			if row.Level == LevelAgent {
				here[row.Agent] = true
			}
		}
	}

	out := make([]FlagRow, 0, len(names))
	for _, name := range names {
		out = append(out, FlagRow{
			Name:            name,
			OverriddenHere:  here[name],
			OverriddenBelow: below[name],
		})
	}
	return out, nil
}
