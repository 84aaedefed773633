package schema

import "github.com/ajitpratap0/quiver/pkg/errors"

// Schema is the flat, public description of a record collection: an ordered
// list of top-level field names with optional data type and nullability per
// field. It is a convenience container next to the full GenericField tree —
// trace it from records, build it manually with AddField/WithField, or let a
// backend adapter populate it from a concrete schema.
//
// For some fields no data type can be determined at trace time (nested
// composites, for example, have no flat scalar type); DataType returns
// ok=false for those.
type Schema struct {
	fields   []string
	seen     map[string]struct{}
	dataType map[string]DataType
	nullable map[string]bool
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{
		seen:     map[string]struct{}{},
		dataType: map[string]DataType{},
		nullable: map[string]bool{},
	}
}

// Fields returns the field names in insertion order.
func (s *Schema) Fields() []string {
	return s.fields
}

// Exists checks whether the given field was recorded.
func (s *Schema) Exists(field string) bool {
	_, ok := s.seen[field]
	return ok
}

// DataType returns the data type of a field. ok is false for fields without
// a determined type and for non-existing fields.
func (s *Schema) DataType(field string) (DataType, bool) {
	dt, ok := s.dataType[field]
	return dt, ok
}

// IsNullable checks whether the field is nullable. Non-existing fields
// report false.
func (s *Schema) IsNullable(field string) bool {
	return s.nullable[field]
}

// AddField adds a new field, overwriting type and nullability if the field
// already exists. Pass nil to leave the corresponding attribute unchanged.
func (s *Schema) AddField(field string, dataType *DataType, nullable *bool) {
	if _, ok := s.seen[field]; !ok {
		s.seen[field] = struct{}{}
		s.fields = append(s.fields, field)
	}
	if dataType != nil {
		s.dataType[field] = *dataType
	}
	if nullable != nil {
		s.nullable[field] = *nullable
	}
}

// WithField is AddField in builder form.
func (s *Schema) WithField(field string, dataType *DataType, nullable *bool) *Schema {
	s.AddField(field, dataType, nullable)
	return s
}

// SetDataType overrides the data type of an existing field.
func (s *Schema) SetDataType(field string, dataType DataType) error {
	if _, ok := s.seen[field]; !ok {
		return errors.Newf(errors.ErrorTypeValidation,
			"cannot set data type for unknown field %s", field).WithField(field)
	}
	s.dataType[field] = dataType
	return nil
}

// SetNullable overrides the nullability of an existing field.
func (s *Schema) SetNullable(field string, nullable bool) error {
	if _, ok := s.seen[field]; !ok {
		return errors.Newf(errors.ErrorTypeValidation,
			"cannot set nullability for unknown field %s", field).WithField(field)
	}
	s.nullable[field] = nullable
	return nil
}

// FromFields flattens the top level of a traced field list into a Schema.
func FromFields(fields []GenericField) *Schema {
	s := NewSchema()
	for i := range fields {
		f := &fields[i]
		nullable := f.Nullable
		if f.DataType.IsComposite() {
			// Composite columns have no flat scalar type.
			s.AddField(f.Name, nil, &nullable)
			continue
		}
		dt := f.DataType
		s.AddField(f.Name, &dt, &nullable)
	}
	return s
}

// ApplyOverrides returns a copy of fields with the schema's data type and
// nullability overrides applied to matching top-level fields. Overrides are
// validated: a data type override must reinterpret the traced type without
// changing the buffered representation class (integer kinds may widen or
// become integer dates, strings may become string dates); conflicting
// overrides are rejected.
func (s *Schema) ApplyOverrides(fields []GenericField) ([]GenericField, error) {
	out := make([]GenericField, len(fields))
	copy(out, fields)
	for i := range out {
		f := &out[i]
		if !s.Exists(f.Name) {
			continue
		}
		if dt, ok := s.dataType[f.Name]; ok && dt != f.DataType {
			if !overrideCompatible(f.DataType, dt) {
				return nil, errors.Newf(errors.ErrorTypeCompilation,
					"cannot override field %s traced as %s with %s", f.Name, f.DataType, dt).
					WithField(f.Name)
			}
			f.DataType = dt
		}
		if nullable, ok := s.nullable[f.Name]; ok {
			f.Nullable = nullable
		}
	}
	return out, nil
}

// overrideCompatible decides whether a traced data type may be reinterpreted
// as the override. The policy is conservative: reject on conflict rather
// than coerce silently.
func overrideCompatible(traced, override DataType) bool {
	switch {
	case traced == override:
		return true
	case traced == Utf8 && (override == DateTimeStr || override == NaiveDateTimeStr):
		return true
	case traced.IsInt() && override == DateTimeMilliseconds:
		return true
	case traced.IsSignedInt() && override.IsSignedInt():
		// Widening only.
		merged, err := widen(traced, override, "")
		return err == nil && merged == override
	case traced.IsUnsignedInt() && override.IsUnsignedInt():
		merged, err := widen(traced, override, "")
		return err == nil && merged == override
	case traced.IsInt() && override.IsFloat():
		return true
	case traced == F32 && override == F64:
		return true
	default:
		return false
	}
}
