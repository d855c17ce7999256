package hierarchy

import (
	"errors"
	"strings"
)

// Level is one of the five nested configuration scopes, most general to
// most specific.
type Level string

const (
	LevelGlobal   Level = "GLOBAL"
	LevelCustomer Level = "CUSTOMER"
	LevelOrg      Level = "ORG"
	LevelSite     Level = "SITE"
	LevelAgent    Level = "AGENT"
)

var (
	ErrInvalidLevel    = errors.New("invalid scope level")
	ErrInvalidSelector = errors.New("invalid scope selector")
)

// ParseLevel accepts the canonical names plus the legacy lowercase aliases
// the portal UI has sent since the first release ("default" meant the
// global value column).
func ParseLevel(raw string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "GLOBAL", "DEFAULT":
		return LevelGlobal, nil
	case "CUSTOMER":
		return LevelCustomer, nil
	case "ORG", "ORGANIZATION":
		return LevelOrg, nil
	case "SITE":
		return LevelSite, nil
	case "AGENT":
		return LevelAgent, nil
	}
	return "", ErrInvalidLevel
}

// Depth orders levels from GLOBAL (0) to AGENT (4).
func (l Level) Depth() int {
	switch l {
	case LevelGlobal:
		return 0
	case LevelCustomer:
		return 1
	case LevelOrg:
		return 2
	case LevelSite:
		return 3
	case LevelAgent:
		return 4
	}
	return -1
}

func (l Level) Valid() bool {
	return l.Depth() >= 0
}

// ScopeSelector names the scope context of a query. Scopes form a strict
// hierarchy: Site requires Organization, Agent requires Site. Absent
// narrower scopes restrict resolution to the broader levels; they are not
// an error.
type ScopeSelector struct {
	CustomerID   string `json:"customerId"`
	Category     string `json:"category"`
	Organization string `json:"organization,omitempty"`
	Site         string `json:"site,omitempty"`
	Agent        string `json:"agent,omitempty"`
}

func (s ScopeSelector) Validate() error {
	if strings.TrimSpace(s.CustomerID) == "" {
		return errors.Join(ErrInvalidSelector, errors.New("customerId is required"))
	}
	if strings.TrimSpace(s.Category) == "" {
		return errors.Join(ErrInvalidSelector, errors.New("category is required"))
	}
	if s.Site != "" && s.Organization == "" {
		return errors.Join(ErrInvalidSelector, errors.New("site requires organization"))
	}
	if s.Agent != "" && s.Site == "" {
		return errors.Join(ErrInvalidSelector, errors.New("agent requires site"))
	}
	return nil
}

// MostSpecific reports the deepest level the selector reaches.
func (s ScopeSelector) MostSpecific() Level {
	switch {
	case s.Agent != "":
		return LevelAgent
	case s.Site != "":
		return LevelSite
	case s.Organization != "":
		return LevelOrg
	default:
		return LevelCustomer
	}
}

// Includes reports whether rows at the given level participate in
// resolution for this selector.
func (s ScopeSelector) Includes(l Level) bool {
	return l.Depth() <= s.MostSpecific().Depth()
}

// SortKeys orders resolved rows for presentation:
// (category, section, property, comment) ascending, insertion order on ties.
type SortKeys struct {
	Category int `json:"category"`
	Section  int `json:"section"`
	Property int `json:"property"`
	Comment  int `json:"comment"`
}

func (a SortKeys) Less(b SortKeys) bool {
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	if a.Section != b.Section {
		return a.Section < b.Section
	}
	if a.Property != b.Property {
		return a.Property < b.Property
	}
	return a.Comment < b.Comment
}

// StoredOverride is one persisted override row at a single scope level.
type StoredOverride struct {
	ConfigID     int64
	CustomerID   string
	Category     string
	Section      string
	Property     string
	Organization string
	Site         string
	Agent        string
	Level        Level
	Value        string
	Sort         SortKeys
	IsCustom     bool
}

// OverrideRow is a resolved property: the effective value at the requested
// scope, plus the next-less-specific value as a reporting projection for
// diffing. Parent fields are never owned by the row itself.
type OverrideRow struct {
	ConfigID       int64    `json:"configId"`
	Section        string   `json:"section"`
	Property       string   `json:"property"`
	Value          string   `json:"value"`
	SourceLevel    Level    `json:"sourceLevel"`
	Sort           SortKeys `json:"sortKeys"`
	ParentValue    *string  `json:"parentValue,omitempty"`
	ParentLevel    Level    `json:"parentLevel,omitempty"`
	ParentConfigID *int64   `json:"parentConfigId,omitempty"`
}

// FlagRow is derived navigation metadata for one hierarchy node. Never
// persisted; recomputed per query.
type FlagRow struct {
	Name            string `json:"name"`
	OverriddenHere  bool   `json:"overriddenHere"`
	OverriddenBelow bool   `json:"overriddenBelow"`
}
