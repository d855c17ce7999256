package store

import (
	"fmt"
	"strings"
	"time"
)

// Param is a query parameter for audit echo purposes: either a plain value
// (driver infers the type) or a typed one carrying its declared SQL type.
type Param struct {
	Name    string `json:"name"`
	SQLType string `json:"sqlType,omitempty"`
	Value   any    `json:"value"`
}

func Plain(name string, value any) Param {
	return Param{Name: name, Value: value}
}

func Typed(name, sqlType string, value any) Param {
	return Param{Name: name, SQLType: sqlType, Value: value}
}

// StatementEcho is the fully rendered statement-and-parameters returned on
// writes blocked by read-only mode, for audit display to privileged
// callers. It is never executed.
type StatementEcho struct {
	SQL      string  `json:"sql"`
	Params   []Param `json:"params"`
	Rendered string  `json:"formattedSql"`
}

func newStatementEcho(sqlText string, params []Param) *StatementEcho {
	return &StatementEcho{
		SQL:      sqlText,
		Params:   params,
		Rendered: renderStatement(sqlText, params),
	}
}

// renderStatement substitutes positional placeholders with display-formatted
// values. Display only; real execution always binds parameters.
func renderStatement(sqlText string, params []Param) string {
	out := sqlText
	for _, p := range params {
		out = strings.Replace(out, "?", formatParamValue(p.Value), 1)
	}
	return strings.Join(strings.Fields(out), " ")
}

func formatParamValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case time.Time:
		return "'" + t.UTC().Format(time.RFC3339) + "'"
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func paramValues(params []Param) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		out = append(out, p.Value)
	}
	return out
}
