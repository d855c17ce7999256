package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mspb-config/core/hierarchy"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// WriteOptions carry the per-request write context: the acting user and
// whether read-only mode applies to this caller (admin bypass is resolved
// by the caller before the store is reached).
type WriteOptions struct {
	Actor    string
	ReadOnly bool
}

// WriteResult reports a persisted mutation, or a blocked one together with
// the statement echo read-only mode owes privileged callers.
type WriteResult struct {
	Blocked  bool
	Echo     *StatementEcho
	ConfigID int64
}

type OverridesStore interface {
	hierarchy.Source
	Get(ctx context.Context, configID int64) (*hierarchy.StoredOverride, error)
	ListGlobalOverrides(ctx context.Context, category string) ([]hierarchy.StoredOverride, error)
	ListCategories(ctx context.Context, customerID string) ([]string, error)
	Update(ctx context.Context, configID int64, property, value string, level hierarchy.Level, opts WriteOptions) (*WriteResult, error)
	Create(ctx context.Context, row *hierarchy.StoredOverride, opts WriteOptions) (*WriteResult, error)
	Delete(ctx context.Context, configID int64, opts WriteOptions) (*WriteResult, error)
}

type overridesStore struct {
	db *sql.DB
}

func NewOverridesStore(db *sql.DB) OverridesStore {
	return &overridesStore{db: db}
}

const overrideColumns = `config_id, customer_id, category, section, property, organization, site, agent, level, value, sort_category, sort_section, sort_property, sort_comment, is_custom`

func (s *overridesStore) ListOverrides(ctx context.Context, sel hierarchy.ScopeSelector) ([]hierarchy.StoredOverride, error) {
	levels := []string{"level='GLOBAL'", "(level='CUSTOMER' AND customer_id=?)"}
	args := []any{sel.Category, sel.CustomerID}
	if sel.Organization != "" {
		levels = append(levels, "(level='ORG' AND customer_id=? AND organization=?)")
		args = append(args, sel.CustomerID, sel.Organization)
	}
	if sel.Site != "" {
		levels = append(levels, "(level='SITE' AND customer_id=? AND organization=? AND site=?)")
		args = append(args, sel.CustomerID, sel.Organization, sel.Site)
	}
	if sel.Agent != "" {
		levels = append(levels, "(level='AGENT' AND customer_id=? AND organization=? AND site=? AND agent=?)")
		args = append(args, sel.CustomerID, sel.Organization, sel.Site, sel.Agent)
	}
	query := `SELECT ` + overrideColumns + ` FROM config_overrides WHERE category=? AND (` +
		strings.Join(levels, " OR ") + `) ORDER BY config_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOverrides(rows)
}

func (s *overridesStore) ListScopedOverrides(ctx context.Context, customerID, category string) ([]hierarchy.StoredOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+overrideColumns+` FROM config_overrides
		WHERE customer_id=? AND category=? AND level IN ('ORG','SITE','AGENT')
		ORDER BY config_id`, customerID, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOverrides(rows)
}

func (s *overridesStore) ListGlobalOverrides(ctx context.Context, category string) ([]hierarchy.StoredOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+overrideColumns+` FROM config_overrides
		WHERE level='GLOBAL' AND category=?
		ORDER BY sort_section, sort_property, config_id`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOverrides(rows)
}

func (s *overridesStore) ListNodes(ctx context.Context, customerID string, level hierarchy.Level, organization, site string) ([]string, error) {
	var query string
	var args []any
	switch level {
	case hierarchy.LevelOrg:
		query = `SELECT DISTINCT organization FROM config_overrides WHERE customer_id=? AND organization<>'' ORDER BY organization`
		args = []any{customerID}
	case hierarchy.LevelSite:
		query = `SELECT DISTINCT site FROM config_overrides WHERE customer_id=? AND organization=? AND site<>'' ORDER BY site`
		args = []any{customerID, organization}
	case hierarchy.LevelAgent:
		query = `SELECT DISTINCT agent FROM config_overrides WHERE customer_id=? AND organization=? AND site=? AND agent<>'' ORDER BY agent`
		args = []any{customerID, organization, site}
	default:
		return nil, hierarchy.ErrInvalidLevel
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *overridesStore) Get(ctx context.Context, configID int64) (*hierarchy.StoredOverride, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+overrideColumns+` FROM config_overrides WHERE config_id=?`, configID)
	o := hierarchy.StoredOverride{}
	var level string
	var isCustom int
	if err := row.Scan(&o.ConfigID, &o.CustomerID, &o.Category, &o.Section, &o.Property,
		&o.Organization, &o.Site, &o.Agent, &level, &o.Value,
		&o.Sort.Category, &o.Sort.Section, &o.Sort.Property, &o.Sort.Comment, &isCustom); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.Level = hierarchy.Level(level)
	o.IsCustom = isCustom != 0
	return &o, nil
}

func (s *overridesStore) ListCategories(ctx context.Context, customerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM config_overrides
		WHERE level='GLOBAL' OR customer_id=?
		ORDER BY category`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update persists exactly one row mutation, stamping the modifier and
// timestamp atomically with the value change. Read-only mode short-circuits
// before touching storage.
func (s *overridesStore) Update(ctx context.Context, configID int64, property, value string, level hierarchy.Level, opts WriteOptions) (*WriteResult, error) {
	if !level.Valid() {
		return nil, hierarchy.ErrInvalidLevel
	}
	query := `UPDATE config_overrides SET value=?, updated_by=?, last_modified=? WHERE config_id=? AND level=?`
	params := []Param{
		Typed("value", "text", value),
		Typed("updated_by", "text", opts.Actor),
		Typed("last_modified", "timestamptz", time.Now().UTC()),
		Typed("config_id", "bigint", configID),
		Typed("level", "text", string(level)),
	}
	if property != "" {
		query += ` AND property=?`
		params = append(params, Typed("property", "text", property))
	}
	if opts.ReadOnly {
		return &WriteResult{Blocked: true, Echo: newStatementEcho(query, params)}, nil
	}
	res, err := s.db.ExecContext(ctx, query, paramValues(params)...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return &WriteResult{ConfigID: configID}, nil
}

func (s *overridesStore) Create(ctx context.Context, row *hierarchy.StoredOverride, opts WriteOptions) (*WriteResult, error) {
	if row == nil {
		return nil, fmt.Errorf("nil override row")
	}
	if !row.Level.Valid() {
		return nil, hierarchy.ErrInvalidLevel
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO config_overrides
			(customer_id, category, section, property, organization, site, agent, level, value,
			 sort_category, sort_section, sort_property, sort_comment, is_custom,
			 created_by, created_at, updated_by, last_modified)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	params := []Param{
		Typed("customer_id", "text", row.CustomerID),
		Typed("category", "text", row.Category),
		Typed("section", "text", row.Section),
		Typed("property", "text", row.Property),
		Typed("organization", "text", row.Organization),
		Typed("site", "text", row.Site),
		Typed("agent", "text", row.Agent),
		Typed("level", "text", string(row.Level)),
		Typed("value", "text", row.Value),
		Plain("sort_category", row.Sort.Category),
		Plain("sort_section", row.Sort.Section),
		Plain("sort_property", row.Sort.Property),
		Plain("sort_comment", row.Sort.Comment),
		Plain("is_custom", boolToInt(true)),
		Typed("created_by", "text", opts.Actor),
		Typed("created_at", "timestamptz", now),
		Typed("updated_by", "text", opts.Actor),
		Typed("last_modified", "timestamptz", now),
	}
	if opts.ReadOnly {
		return &WriteResult{Blocked: true, Echo: newStatementEcho(query, params)}, nil
	}
	res, err := s.db.ExecContext(ctx, query, paramValues(params)...)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &WriteResult{ConfigID: id}, nil
}

// Delete removes a custom entry. System defaults and anything at GLOBAL
// scope are not deletable.
func (s *overridesStore) Delete(ctx context.Context, configID int64, opts WriteOptions) (*WriteResult, error) {
	existing, err := s.Get(ctx, configID)
	if err != nil {
		return nil, err
	}
	if !existing.IsCustom || existing.Level == hierarchy.LevelGlobal {
		return nil, ErrForbidden
	}
	query := `DELETE FROM config_overrides WHERE config_id=? AND is_custom=1`
	params := []Param{Typed("config_id", "bigint", configID)}
	if opts.ReadOnly {
		return &WriteResult{Blocked: true, Echo: newStatementEcho(query, params)}, nil
	}
	res, err := s.db.ExecContext(ctx, query, paramValues(params)...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return &WriteResult{ConfigID: configID}, nil
}

func scanOverrides(rows *sql.Rows) ([]hierarchy.StoredOverride, error) {
	out := []hierarchy.StoredOverride{}
	for rows.Next() {
		o := hierarchy.StoredOverride{}
		var level string
		var isCustom int
		if err := rows.Scan(&o.ConfigID, &o.CustomerID, &o.Category, &o.Section, &o.Property,
			&o.Organization, &o.Site, &o.Agent, &level, &o.Value,
			&o.Sort.Category, &o.Sort.Section, &o.Sort.Property, &o.Sort.Comment, &isCustom); err != nil {
			return nil, err
		}
		o.Level = hierarchy.Level(level)
		o.IsCustom = isCustom != 0
		out = append(out, o)
	}
	return out, rows.Err()
}
