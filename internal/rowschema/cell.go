package rowschema

import "fmt"

// Cell is a tagged union over the scalar types a row's columns can hold.
// Exactly one of the typed fields is meaningful, selected by Kind; Null
// indicates a SQL NULL regardless of Kind.
type Cell struct {
	Kind  FieldKind
	Null  bool
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// CellString builds a non-null string cell.
func CellString(v string) Cell { return Cell{Kind: String, Str: v} }

// CellInt64 builds a non-null integer cell.
func CellInt64(v int64) Cell { return Cell{Kind: Integer, Int: v} }

// CellFloat64 builds a non-null double cell.
func CellFloat64(v float64) Cell { return Cell{Kind: Double, Float: v} }

// CellBool builds a non-null boolean cell.
func CellBool(v bool) Cell { return Cell{Kind: Bool, Bool: v} }

// CellNull builds a null cell of the given kind.
func CellNull(kind FieldKind) Cell { return Cell{Kind: kind, Null: true} }

// Value returns the cell's value as an any, suitable for passing to
// database/sql as a bind parameter.
func (c Cell) Value() any {
	if c.Null {
		return nil
	}
	switch c.Kind {
	case Integer:
		return c.Int
	case Double:
		return c.Float
	case Bool:
		return c.Bool
	default:
		return c.Str
	}
}

func (c Cell) String() string {
	if c.Null {
		return "<null>"
	}
	switch c.Kind {
	case Integer:
		return fmt.Sprintf("%d", c.Int)
	case Double:
		return fmt.Sprintf("%g", c.Float)
	case Bool:
		return fmt.Sprintf("%t", c.Bool)
	default:
		return c.Str
	}
}

// Row is an ordered sequence of cells matching a Schema's field list.
type Row []Cell

// ID returns the primary-key cell's integer value, by convention field 0.
func (r Row) ID() int64 {
	if len(r) == 0 {
		return 0
	}
	return r[0].Int
}
