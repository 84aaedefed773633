// Package serialization compiles field trees into flat buffer-append
// programs and interprets them against live event streams. One compiled
// program plus its buffer set make up one conversion session: the
// interpreter can be driven record-at-a-time or with whole collections, and
// finishing the session yields the populated buffers.
package serialization

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/columnar"
	"github.com/ajitpratap0/quiver/pkg/config"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/logger"
	"github.com/ajitpratap0/quiver/pkg/schema"
	stringpool "github.com/ajitpratap0/quiver/pkg/strings"
)

// Op is the operation class of one instruction.
type Op uint8

const (
	// OpStruct dispatches field names to child instructions
	OpStruct Op = iota
	// OpList counts elements and pushes an offset when the list closes
	OpList
	// OpMap is compiled as a list of key-value pairs over two children
	OpMap
	// OpScalar appends one fixed-width value (numerics, bools, dates)
	OpScalar
	// OpVariable appends one variable-length value (utf8, binary)
	OpVariable
	// OpNull records an entry in an all-null column
	OpNull
)

var opNames = map[Op]string{
	OpStruct:   "struct",
	OpList:     "list",
	OpMap:      "map",
	OpScalar:   "scalar",
	OpVariable: "variable",
	OpNull:     "null",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return stringpool.Sprintf("Op(%d)", uint8(o))
}

// Instr is one instruction of a compiled program. Instructions are laid out
// in depth-first order (struct fields in schema order), so program order is
// a total function of the field tree; composite instructions reference their
// children by instruction index.
type Instr struct {
	Op       Op
	Path     string
	Kind     schema.DataType
	Nullable bool

	// Buffer references. Validity is NoBuffer for non-nullable fields.
	// For Bool scalars Values addresses the bitmap space, not the
	// fixed-width value space.
	Validity columnar.BufferID
	Values   columnar.BufferID
	Offsets  columnar.BufferID
	Data     columnar.BufferID

	// Composite wiring
	Names    []string
	Children []int
}

// Program is a compiled serialization program together with the buffer set
// its instructions reference. Programs are allocated per conversion session
// and discarded after use.
type Program struct {
	Instructions []Instr
	Root         int
	Buffers      *columnar.Buffers
	// Mappings associates each top-level field with its buffer IDs, in
	// field order. Backend adapters use it to assemble concrete arrays.
	Mappings []columnar.FieldMapping
}

// CompilationOptions configures program compilation.
type CompilationOptions struct {
	// WrapWithStruct treats the compiled fields as the columns of an
	// implicit root struct (the record shape). Disable for single-array
	// programs whose root is the field itself.
	WrapWithStruct bool
}

// NewCompilationOptions returns the default options.
func NewCompilationOptions() CompilationOptions {
	return CompilationOptions{WrapWithStruct: true}
}

type compiler struct {
	buffers *columnar.Buffers
	instrs  []Instr
}

// Compile lowers an ordered field list into a flat program, allocating the
// backing buffers as it goes. Field shapes that cannot be represented (map
// keys that are nullable, extension types, undetermined types) are rejected
// here, before any data is processed.
func Compile(fields []schema.GenericField, opts CompilationOptions) (*Program, error) {
	for i := range fields {
		if err := fields[i].Validate(); err != nil {
			return nil, err
		}
	}

	c := &compiler{buffers: columnar.NewBuffers()}

	program := &Program{}
	if opts.WrapWithStruct {
		root := Instr{
			Op:       OpStruct,
			Path:     "$",
			Kind:     schema.Struct,
			Validity: columnar.NoBuffer,
			Values:   columnar.NoBuffer,
			Offsets:  columnar.NoBuffer,
			Data:     columnar.NoBuffer,
		}
		rootIdx := c.append(root)
		children := make([]int, 0, len(fields))
		names := make([]string, 0, len(fields))
		mappings := make([]columnar.FieldMapping, 0, len(fields))
		for i := range fields {
			path := stringpool.JoinPath("$", fields[i].Name)
			idx, mapping, err := c.compileField(&fields[i], path)
			if err != nil {
				return nil, err
			}
			children = append(children, idx)
			names = append(names, fields[i].Name)
			mappings = append(mappings, mapping)
		}
		c.instrs[rootIdx].Children = children
		c.instrs[rootIdx].Names = names
		program.Root = rootIdx
		program.Mappings = mappings
	} else {
		if len(fields) != 1 {
			return nil, errors.Newf(errors.ErrorTypeCompilation,
				"single-array compilation requires exactly one field, got %d", len(fields))
		}
		path := stringpool.JoinPath("$", fields[0].Name)
		idx, mapping, err := c.compileField(&fields[0], path)
		if err != nil {
			return nil, err
		}
		program.Root = idx
		program.Mappings = []columnar.FieldMapping{mapping}
	}

	program.Instructions = c.instrs
	program.Buffers = c.buffers

	if config.Snapshot().DebugPrintProgram {
		dumpProgram("serialization program", program.Instructions, program.Root)
	}
	return program, nil
}

func (c *compiler) append(in Instr) int {
	c.instrs = append(c.instrs, in)
	return len(c.instrs) - 1
}

func (c *compiler) compileField(f *schema.GenericField, path string) (int, columnar.FieldMapping, error) {
	mapping := columnar.FieldMapping{
		Field:    *f,
		Validity: columnar.NoBuffer,
		Values:   columnar.NoBuffer,
		Offsets:  columnar.NoBuffer,
		Data:     columnar.NoBuffer,
	}

	in := Instr{
		Path:     path,
		Kind:     f.DataType,
		Nullable: f.Nullable,
		Validity: columnar.NoBuffer,
		Values:   columnar.NoBuffer,
		Offsets:  columnar.NoBuffer,
		Data:     columnar.NoBuffer,
	}
	if f.Nullable && f.DataType != schema.Null {
		in.Validity = c.buffers.AddBitmap()
		mapping.Validity = in.Validity
	}

	switch f.DataType {
	case schema.Bool:
		in.Op = OpScalar
		in.Values = c.buffers.AddBitmap()
		mapping.Values = in.Values

	case schema.I8, schema.I16, schema.I32, schema.I64,
		schema.U8, schema.U16, schema.U32, schema.U64,
		schema.F32, schema.F64,
		schema.DateTimeStr, schema.NaiveDateTimeStr, schema.DateTimeMilliseconds:
		in.Op = OpScalar
		in.Values = c.buffers.AddValues(valueWidth(f.DataType))
		mapping.Values = in.Values

	case schema.Utf8, schema.Binary:
		in.Op = OpVariable
		in.Offsets = c.buffers.AddOffsets()
		in.Data = c.buffers.AddBytes()
		mapping.Offsets = in.Offsets
		mapping.Data = in.Data

	case schema.Null:
		if !f.Nullable {
			return 0, mapping, errors.Newf(errors.ErrorTypeCompilation,
				"null column %s must be nullable", path).WithField(path)
		}
		in.Op = OpNull
		in.Validity = c.buffers.AddBitmap()
		mapping.Validity = in.Validity

	case schema.Struct:
		in.Op = OpStruct
		idx := c.append(in)
		children := make([]int, 0, len(f.Children))
		names := make([]string, 0, len(f.Children))
		for i := range f.Children {
			childPath := stringpool.JoinPath(path, f.Children[i].Name)
			childIdx, childMapping, err := c.compileField(&f.Children[i], childPath)
			if err != nil {
				return 0, mapping, err
			}
			children = append(children, childIdx)
			names = append(names, f.Children[i].Name)
			mapping.Children = append(mapping.Children, childMapping)
		}
		c.instrs[idx].Children = children
		c.instrs[idx].Names = names
		return idx, mapping, nil

	case schema.List:
		in.Op = OpList
		in.Offsets = c.buffers.AddOffsets()
		mapping.Offsets = in.Offsets
		idx := c.append(in)
		childPath := stringpool.Sprintf("%s[]", path)
		childIdx, childMapping, err := c.compileField(&f.Children[0], childPath)
		if err != nil {
			return 0, mapping, err
		}
		c.instrs[idx].Children = []int{childIdx}
		mapping.Children = []columnar.FieldMapping{childMapping}
		return idx, mapping, nil

	case schema.Map:
		if f.Children[0].Nullable {
			return 0, mapping, errors.Newf(errors.ErrorTypeCompilation,
				"map key for field %s cannot be nullable", path).WithField(path)
		}
		in.Op = OpMap
		in.Offsets = c.buffers.AddOffsets()
		mapping.Offsets = in.Offsets
		idx := c.append(in)
		keyPath := stringpool.JoinPath(path, "key")
		keyIdx, keyMapping, err := c.compileField(&f.Children[0], keyPath)
		if err != nil {
			return 0, mapping, err
		}
		valuePath := stringpool.JoinPath(path, "value")
		valueIdx, valueMapping, err := c.compileField(&f.Children[1], valuePath)
		if err != nil {
			return 0, mapping, err
		}
		c.instrs[idx].Children = []int{keyIdx, valueIdx}
		c.instrs[idx].Names = []string{"key", "value"}
		mapping.Children = []columnar.FieldMapping{keyMapping, valueMapping}
		return idx, mapping, nil

	case schema.Ext:
		return 0, mapping, errors.Newf(errors.ErrorTypeCompilation,
			"extension type %s for field %s requires a backend compiler", f.Extension, path).
			WithField(path)

	default:
		return 0, mapping, errors.Newf(errors.ErrorTypeCompilation,
			"cannot compile data type %s for field %s", f.DataType, path).WithField(path)
	}

	idx := c.append(in)
	return idx, mapping, nil
}

// valueWidth returns the fixed element width in bytes for a scalar kind.
func valueWidth(dt schema.DataType) int {
	switch dt {
	case schema.I8, schema.U8:
		return 1
	case schema.I16, schema.U16:
		return 2
	case schema.I32, schema.U32, schema.F32:
		return 4
	default:
		// I64, U64, F64 and all date encodings materialize as 64 bits.
		return 8
	}
}

// dumpProgram logs the linearized instruction list at debug level. Gated on
// the process-wide DebugPrintProgram toggle, read once per compilation.
func dumpProgram(what string, instrs []Instr, root int) {
	log := logger.Named("serialization")
	log.Debug(what, zap.Int("instructions", len(instrs)), zap.Int("root", root))
	for i, in := range instrs {
		log.Debug("instr",
			zap.Int("index", i),
			zap.Stringer("op", in.Op),
			zap.String("path", in.Path),
			zap.Stringer("kind", in.Kind),
			zap.Bool("nullable", in.Nullable),
			zap.Int32("validity", int32(in.Validity)),
			zap.Int32("values", int32(in.Values)),
			zap.Int32("offsets", int32(in.Offsets)),
			zap.Int32("data", int32(in.Data)),
			zap.Ints("children", in.Children),
		)
	}
}
