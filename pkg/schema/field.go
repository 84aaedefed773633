package schema

import (
	"github.com/ajitpratap0/quiver/pkg/errors"
	stringpool "github.com/ajitpratap0/quiver/pkg/strings"
)

// GenericField describes one column: its name, resolved data type,
// nullability and, for composite kinds, its children. Child ordering is
// stable and meaningful: Struct children are in first-seen field order, List
// has exactly one child (the element type) and Map exactly two (key, value).
//
// A field is immutable once returned from the tracer; the compilers treat it
// as read-only input.
type GenericField struct {
	Name      string
	DataType  DataType
	Nullable  bool
	Children  []GenericField
	Extension ExtensionType // set iff DataType == Ext
}

// NewField builds a scalar field.
func NewField(name string, dataType DataType, nullable bool) GenericField {
	return GenericField{Name: name, DataType: dataType, Nullable: nullable}
}

// NewStructField builds a struct field from its children.
func NewStructField(name string, nullable bool, children ...GenericField) GenericField {
	return GenericField{Name: name, DataType: Struct, Nullable: nullable, Children: children}
}

// NewListField builds a list field from its element field.
func NewListField(name string, nullable bool, element GenericField) GenericField {
	return GenericField{Name: name, DataType: List, Nullable: nullable, Children: []GenericField{element}}
}

// NewMapField builds a map field from its key and value fields.
func NewMapField(name string, nullable bool, key, value GenericField) GenericField {
	return GenericField{Name: name, DataType: Map, Nullable: nullable, Children: []GenericField{key, value}}
}

// Validate checks the structural invariants of the field tree.
func (f *GenericField) Validate() error {
	switch f.DataType {
	case Struct:
		for i := range f.Children {
			if err := f.Children[i].Validate(); err != nil {
				return err
			}
		}
	case List:
		if len(f.Children) != 1 {
			return errors.Newf(errors.ErrorTypeValidation,
				"list field %q must have exactly one child, has %d", f.Name, len(f.Children)).
				WithField(f.Name)
		}
		return f.Children[0].Validate()
	case Map:
		if len(f.Children) != 2 {
			return errors.Newf(errors.ErrorTypeValidation,
				"map field %q must have exactly two children, has %d", f.Name, len(f.Children)).
				WithField(f.Name)
		}
		for i := range f.Children {
			if err := f.Children[i].Validate(); err != nil {
				return err
			}
		}
	case Ext:
		if f.Extension == nil {
			return errors.Newf(errors.ErrorTypeValidation,
				"extension field %q has no extension type", f.Name).WithField(f.Name)
		}
	default:
		if len(f.Children) != 0 {
			return errors.Newf(errors.ErrorTypeValidation,
				"scalar field %q cannot have children", f.Name).WithField(f.Name)
		}
	}
	return nil
}

// String renders the field tree on one line, e.g.
// "root: Struct<a: I64, b: List<element: Utf8?>>".
func (f *GenericField) String() string {
	b := stringpool.GetBuilder()
	defer stringpool.PutBuilder(b)
	f.render(b)
	return stringpool.Clone(b.String())
}

func (f *GenericField) render(b *stringpool.Builder) {
	b.WriteString(f.Name)
	b.WriteString(": ")
	if f.DataType == Ext && f.Extension != nil {
		b.WriteString("Ext(")
		b.WriteString(f.Extension.String())
		b.WriteString(")")
	} else {
		b.WriteString(f.DataType.String())
	}
	if len(f.Children) > 0 {
		b.WriteString("<")
		for i := range f.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			f.Children[i].render(b)
		}
		b.WriteString(">")
	}
	if f.Nullable {
		b.WriteString("?")
	}
}

// Equal reports deep equality of two field trees, ignoring extensions.
func (f *GenericField) Equal(other *GenericField) bool {
	if f.Name != other.Name || f.DataType != other.DataType || f.Nullable != other.Nullable {
		return false
	}
	if len(f.Children) != len(other.Children) {
		return false
	}
	for i := range f.Children {
		if !f.Children[i].Equal(&other.Children[i]) {
			return false
		}
	}
	return true
}
