package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// FileSpec is category metadata owned by administrators. last_reviewed
// auto-updates on any field change.
type FileSpec struct {
	FileSpecID              int64      `json:"file_spec_id"`
	Name                    string     `json:"f_name"`
	Description             string     `json:"file_desc"`
	SortOrder               int        `json:"sort_order"`
	CustomSectionsAllowed   bool       `json:"custom_sections_allowed"`
	SectionSortUsedByClient bool       `json:"section_sort_used_by_client"`
	LegacyCategoryName      string     `json:"legacy_category_name"`
	LastReviewed            *time.Time `json:"last_reviewed,omitempty"`
	UpdatedBy               string     `json:"updated_by"`
}

type SectionSpec struct {
	SectionSpecID    int64      `json:"section_spec_id"`
	FileSpecID       int64      `json:"file_spec_id"`
	FileDesc         string     `json:"file_desc"`
	SectionName      string     `json:"section_name"`
	SectionDesc      string     `json:"section_desc"`
	SortOrder        int        `json:"sort_order"`
	IsGlobalDefault  bool       `json:"is_global_default"`
	IsOptional       bool       `json:"is_optional"`
	PresenceEnforced bool       `json:"presence_enforced"`
	LastReviewed     *time.Time `json:"last_reviewed,omitempty"`
	UpdatedBy        string     `json:"updated_by"`
}

type FileSpecUpdate struct {
	Description             string
	SortOrder               int
	CustomSectionsAllowed   bool
	SectionSortUsedByClient bool
}

type SectionSpecUpdate struct {
	SectionName      string
	SectionDesc      string
	SortOrder        int
	IsGlobalDefault  bool
	IsOptional       bool
	PresenceEnforced bool
}

type SectionSpecCreate struct {
	FileSpecID  int64
	SectionName string
	SectionDesc string
	SortOrder   int
}

// DataTypeValue is one permitted value of an enumerated property domain.
type DataTypeValue struct {
	DataTypeValueID int64  `json:"dataTypeValueId"`
	DataTypeID      int64  `json:"dataTypeId"`
	Value           string `json:"value"`
	DisplayName     string `json:"displayName"`
	SortOrder       int    `json:"sortOrder"`
}

type SpecsStore interface {
	ListFileSpecs(ctx context.Context) ([]FileSpec, error)
	UpdateFileSpec(ctx context.Context, fileSpecID int64, upd FileSpecUpdate, opts WriteOptions) (*WriteResult, error)
	ListSectionSpecs(ctx context.Context, fileSpecID int64) ([]SectionSpec, error)
	UpdateSectionSpec(ctx context.Context, sectionSpecID int64, upd SectionSpecUpdate, opts WriteOptions) (*WriteResult, error)
	// CreateSectionSpec adds a caller-defined section under a file spec.
	// Returns ErrForbidden when the file spec does not allow custom
	// sections, ErrNotFound when the file spec does not exist.
	CreateSectionSpec(ctx context.Context, create SectionSpecCreate, opts WriteOptions) (*WriteResult, error)
	ListDataTypeValues(ctx context.Context, dataTypeID int64) ([]DataTypeValue, error)
}

type specsStore struct {
	db *sql.DB
}

func NewSpecsStore(db *sql.DB) SpecsStore {
	return &specsStore{db: db}
}

func (s *specsStore) ListFileSpecs(ctx context.Context) ([]FileSpec, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_spec_id, f_name, file_desc, sort_order, custom_sections_allowed,
		       section_sort_used_by_client, legacy_category_name, last_reviewed, updated_by
		FROM file_spec
		ORDER BY sort_order, f_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []FileSpec{}
	for rows.Next() {
		f := FileSpec{}
		var custom, clientSort int
		var reviewed sql.NullTime
		if err := rows.Scan(&f.FileSpecID, &f.Name, &f.Description, &f.SortOrder,
			&custom, &clientSort, &f.LegacyCategoryName, &reviewed, &f.UpdatedBy); err != nil {
			return nil, err
		}
		f.CustomSectionsAllowed = custom != 0
		f.SectionSortUsedByClient = clientSort != 0
		if reviewed.Valid {
			t := reviewed.Time
			f.LastReviewed = &t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *specsStore) UpdateFileSpec(ctx context.Context, fileSpecID int64, upd FileSpecUpdate, opts WriteOptions) (*WriteResult, error) {
	query := `UPDATE file_spec
		SET file_desc=?, sort_order=?, custom_sections_allowed=?, section_sort_used_by_client=?,
		    last_reviewed=?, updated_by=?
		WHERE file_spec_id=?`
	params := []Param{
		Typed("file_desc", "text", upd.Description),
		Plain("sort_order", upd.SortOrder),
		Plain("custom_sections_allowed", boolToInt(upd.CustomSectionsAllowed)),
		Plain("section_sort_used_by_client", boolToInt(upd.SectionSortUsedByClient)),
		Typed("last_reviewed", "timestamptz", time.Now().UTC()),
		Typed("updated_by", "text", opts.Actor),
		Typed("file_spec_id", "bigint", fileSpecID),
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
	return &WriteResult{ConfigID: fileSpecID}, nil
}

func (s *specsStore) ListSectionSpecs(ctx context.Context, fileSpecID int64) ([]SectionSpec, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ss.section_spec_id, ss.file_spec_id, fs.file_desc, ss.section_name, ss.section_desc,
		       ss.sort_order, ss.is_global_default, ss.is_optional, ss.presence_enforced,
		       ss.last_reviewed, ss.updated_by
		FROM section_spec ss
		JOIN file_spec fs ON fs.file_spec_id = ss.file_spec_id
		WHERE ss.file_spec_id=?
		ORDER BY ss.sort_order, ss.section_name`, fileSpecID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SectionSpec{}
	for rows.Next() {
		sp := SectionSpec{}
		var global, optional, enforced int
		var reviewed sql.NullTime
		if err := rows.Scan(&sp.SectionSpecID, &sp.FileSpecID, &sp.FileDesc, &sp.SectionName,
			&sp.SectionDesc, &sp.SortOrder, &global, &optional, &enforced, &reviewed, &sp.UpdatedBy); err != nil {
			return nil, err
		}
		sp.IsGlobalDefault = global != 0
		sp.IsOptional = optional != 0
		sp.PresenceEnforced = enforced != 0
		if reviewed.Valid {
			t := reviewed.Time
			sp.LastReviewed = &t
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *specsStore) UpdateSectionSpec(ctx context.Context, sectionSpecID int64, upd SectionSpecUpdate, opts WriteOptions) (*WriteResult, error) {
	if strings.TrimSpace(upd.SectionName) == "" {
		return nil, errors.New("section_name is required")
	}
	query := `UPDATE section_spec
		SET section_name=?, section_desc=?, sort_order=?, is_global_default=?, is_optional=?,
		    presence_enforced=?, last_reviewed=?, updated_by=?
		WHERE section_spec_id=?`
	params := []Param{
		Typed("section_name", "text", strings.TrimSpace(upd.SectionName)),
		Typed("section_desc", "text", upd.SectionDesc),
		Plain("sort_order", upd.SortOrder),
		Plain("is_global_default", boolToInt(upd.IsGlobalDefault)),
		Plain("is_optional", boolToInt(upd.IsOptional)),
		Plain("presence_enforced", boolToInt(upd.PresenceEnforced)),
		Typed("last_reviewed", "timestamptz", time.Now().UTC()),
		Typed("updated_by", "text", opts.Actor),
		Typed("section_spec_id", "bigint", sectionSpecID),
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
	return &WriteResult{ConfigID: sectionSpecID}, nil
}

func (s *specsStore) CreateSectionSpec(ctx context.Context, create SectionSpecCreate, opts WriteOptions) (*WriteResult, error) {
	name := strings.TrimSpace(create.SectionName)
	if name == "" {
		return nil, errors.New("section_name is required")
	}
	var allowed int
	err := s.db.QueryRowContext(ctx,
		`SELECT custom_sections_allowed FROM file_spec WHERE file_spec_id=?`,
		create.FileSpecID).Scan(&allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if allowed == 0 {
		return nil, ErrForbidden
	}
	query := `INSERT INTO section_spec
		(file_spec_id, section_name, section_desc, sort_order, is_global_default, is_optional,
		 presence_enforced, last_reviewed, updated_by)
		VALUES (?,?,?,?,?,?,?,?,?)`
	params := []Param{
		Typed("file_spec_id", "bigint", create.FileSpecID),
		Typed("section_name", "text", name),
		Typed("section_desc", "text", create.SectionDesc),
		Plain("sort_order", create.SortOrder),
		Plain("is_global_default", boolToInt(false)),
		Plain("is_optional", boolToInt(true)),
		Plain("presence_enforced", boolToInt(false)),
		Typed("last_reviewed", "timestamptz", time.Now().UTC()),
		Typed("updated_by", "text", opts.Actor),
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

func (s *specsStore) ListDataTypeValues(ctx context.Context, dataTypeID int64) ([]DataTypeValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data_type_value_id, data_type_id, value, display_name, sort_order
		FROM data_type_value
		WHERE data_type_id=?
		ORDER BY sort_order, value`, dataTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DataTypeValue{}
	for rows.Next() {
		v := DataTypeValue{}
		if err := rows.Scan(&v.DataTypeValueID, &v.DataTypeID, &v.Value, &v.DisplayName, &v.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
