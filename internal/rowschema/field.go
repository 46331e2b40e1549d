// Package rowschema defines the row schema, cell, and delta types shared
// between the producer side, the back cache's SQL store and the front
// model's view snapshots.
package rowschema

import "fmt"

// FieldKind is the SQL type a field descriptor maps onto.
type FieldKind int

const (
	String FieldKind = iota
	StringCollateNoCase
	Integer
	Double
	DateTime
	Bool
)

// DDL returns the SQLite column type for the field kind.
func (k FieldKind) DDL() string {
	switch k {
	case String:
		return "TEXT"
	case StringCollateNoCase:
		return "TEXT COLLATE NOCASE"
	case Integer:
		return "INTEGER"
	case Double:
		return "REAL"
	case DateTime:
		return "TEXT"
	case Bool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (k FieldKind) String() string {
	switch k {
	case String:
		return "String"
	case StringCollateNoCase:
		return "StringCollateNoCase"
	case Integer:
		return "Integer"
	case Double:
		return "Double"
	case DateTime:
		return "DateTime"
	case Bool:
		return "Bool"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// FieldDescriptor names one column of a row schema.
type FieldDescriptor struct {
	Name string
	Kind FieldKind
	// IsCommonText marks a column that receives the concatenated
	// full-text projection of the configured common-index ranges,
	// used for case-insensitive substring/regexp filtering.
	IsCommonText bool
}

// Schema is an ordered field list. By convention the first field is the
// 64-bit integer primary key.
type Schema struct {
	Fields []FieldDescriptor
}

// PrimaryKey returns the name of the first field.
func (s Schema) PrimaryKey() string {
	if len(s.Fields) == 0 {
		return ""
	}
	return s.Fields[0].Name
}

// CommonTextIndex returns the index of the common full-text column, or -1
// if none is configured.
func (s Schema) CommonTextIndex() int {
	for i, f := range s.Fields {
		if f.IsCommonText {
			return i
		}
	}
	return -1
}
