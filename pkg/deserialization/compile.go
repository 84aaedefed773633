// Package deserialization compiles field mappings back into flat programs
// whose interpretation replays the original event stream from columnar
// buffers. It is the mirror of the serialization package: the same field
// tree linearizes to the same instruction shape, but instructions here are
// read against per-column cursors instead of appended to.
package deserialization

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/columnar"
	"github.com/ajitpratap0/quiver/pkg/config"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/logger"
	"github.com/ajitpratap0/quiver/pkg/schema"
	stringpool "github.com/ajitpratap0/quiver/pkg/strings"
)

// Op is the operation class of one read instruction.
type Op uint8

const (
	OpStruct Op = iota
	OpList
	OpMap
	OpScalar
	OpVariable
	OpNull
)

// Instr is one instruction of a compiled read program. The layout mirrors
// the serialization program for the same field tree.
type Instr struct {
	Op       Op
	Path     string
	Kind     schema.DataType
	Nullable bool

	Validity columnar.BufferID
	Values   columnar.BufferID
	Offsets  columnar.BufferID
	Data     columnar.BufferID

	Names    []string
	Children []int
}

// Program is a compiled read program over a fixed buffer set and record
// count.
type Program struct {
	Instructions []Instr
	Root         int
	Buffers      *columnar.Buffers
	NumItems     int
}

type compiler struct {
	buffers *columnar.Buffers
	instrs  []Instr
}

// Compile builds a read program from per-field buffer mappings. Buffer
// lengths are validated against the record count up front, so that length
// inconsistencies surface as data integrity errors here rather than as
// truncated streams later.
func Compile(mappings []columnar.FieldMapping, buffers *columnar.Buffers, numItems int) (*Program, error) {
	c := &compiler{buffers: buffers}

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
	children := make([]int, 0, len(mappings))
	names := make([]string, 0, len(mappings))
	for i := range mappings {
		path := stringpool.JoinPath("$", mappings[i].Field.Name)
		idx, err := c.compileMapping(&mappings[i], path)
		if err != nil {
			return nil, err
		}
		children = append(children, idx)
		names = append(names, mappings[i].Field.Name)
	}
	c.instrs[rootIdx].Children = children
	c.instrs[rootIdx].Names = names

	program := &Program{
		Instructions: c.instrs,
		Root:         rootIdx,
		Buffers:      buffers,
		NumItems:     numItems,
	}
	if err := program.checkLengths(rootIdx, numItems); err != nil {
		return nil, err
	}
	if config.Snapshot().DebugPrintProgram {
		program.dump()
	}
	return program, nil
}

func (c *compiler) append(in Instr) int {
	c.instrs = append(c.instrs, in)
	return len(c.instrs) - 1
}

func (c *compiler) compileMapping(m *columnar.FieldMapping, path string) (int, error) {
	f := &m.Field
	if err := f.Validate(); err != nil {
		return 0, err
	}

	in := Instr{
		Path:     path,
		Kind:     f.DataType,
		Nullable: f.Nullable,
		Validity: m.Validity,
		Values:   m.Values,
		Offsets:  m.Offsets,
		Data:     m.Data,
	}

	switch f.DataType {
	case schema.Bool,
		schema.I8, schema.I16, schema.I32, schema.I64,
		schema.U8, schema.U16, schema.U32, schema.U64,
		schema.F32, schema.F64,
		schema.DateTimeStr, schema.NaiveDateTimeStr, schema.DateTimeMilliseconds:
		in.Op = OpScalar
		if m.Values == columnar.NoBuffer {
			return 0, errors.Newf(errors.ErrorTypeCompilation,
				"field %s has no value buffer", path).WithField(path)
		}

	case schema.Utf8, schema.Binary:
		in.Op = OpVariable
		if m.Offsets == columnar.NoBuffer || m.Data == columnar.NoBuffer {
			return 0, errors.Newf(errors.ErrorTypeCompilation,
				"field %s has no offset or data buffer", path).WithField(path)
		}

	case schema.Null:
		in.Op = OpNull
		if m.Validity == columnar.NoBuffer {
			return 0, errors.Newf(errors.ErrorTypeCompilation,
				"null field %s has no validity buffer", path).WithField(path)
		}

	case schema.Struct:
		in.Op = OpStruct
		idx := c.append(in)
		children := make([]int, 0, len(m.Children))
		names := make([]string, 0, len(m.Children))
		for i := range m.Children {
			childPath := stringpool.JoinPath(path, m.Children[i].Field.Name)
			childIdx, err := c.compileMapping(&m.Children[i], childPath)
			if err != nil {
				return 0, err
			}
			children = append(children, childIdx)
			names = append(names, m.Children[i].Field.Name)
		}
		c.instrs[idx].Children = children
		c.instrs[idx].Names = names
		return idx, nil

	case schema.List:
		in.Op = OpList
		if m.Offsets == columnar.NoBuffer {
			return 0, errors.Newf(errors.ErrorTypeCompilation,
				"list field %s has no offset buffer", path).WithField(path)
		}
		idx := c.append(in)
		childIdx, err := c.compileMapping(&m.Children[0], stringpool.Sprintf("%s[]", path))
		if err != nil {
			return 0, err
		}
		c.instrs[idx].Children = []int{childIdx}
		return idx, nil

	case schema.Map:
		in.Op = OpMap
		if m.Offsets == columnar.NoBuffer {
			return 0, errors.Newf(errors.ErrorTypeCompilation,
				"map field %s has no offset buffer", path).WithField(path)
		}
		idx := c.append(in)
		keyIdx, err := c.compileMapping(&m.Children[0], stringpool.JoinPath(path, "key"))
		if err != nil {
			return 0, err
		}
		valueIdx, err := c.compileMapping(&m.Children[1], stringpool.JoinPath(path, "value"))
		if err != nil {
			return 0, err
		}
		c.instrs[idx].Children = []int{keyIdx, valueIdx}
		c.instrs[idx].Names = []string{"key", "value"}
		return idx, nil

	default:
		return 0, errors.Newf(errors.ErrorTypeCompilation,
			"cannot compile data type %s for field %s", f.DataType, path).WithField(path)
	}

	return c.append(in), nil
}

// checkLengths verifies that every buffer reachable from the instruction
// holds exactly the number of entries its parent implies.
func (p *Program) checkLengths(idx, expected int) error {
	in := &p.Instructions[idx]

	if in.Validity != columnar.NoBuffer {
		if got := p.Buffers.Bitmap(in.Validity).Len(); got != expected {
			return p.lengthError(in, "validity bitmap", got, expected)
		}
	}

	switch in.Op {
	case OpScalar:
		var got int
		if in.Kind == schema.Bool {
			got = p.Buffers.Bitmap(in.Values).Len()
		} else {
			got = p.Buffers.Values(in.Values).Len()
		}
		if got != expected {
			return p.lengthError(in, "value buffer", got, expected)
		}

	case OpVariable:
		offsets := p.Buffers.Offsets(in.Offsets)
		if got := offsets.Len(); got != expected {
			return p.lengthError(in, "offset buffer", got, expected)
		}
		end := 0
		if n := offsets.Len(); n > 0 {
			_, last, err := offsets.Range(n - 1)
			if err != nil {
				return err
			}
			end = last
		}
		if got := p.Buffers.Bytes(in.Data).Len(); got < end {
			return p.lengthError(in, "data buffer", got, end)
		}

	case OpList, OpMap:
		offsets := p.Buffers.Offsets(in.Offsets)
		if got := offsets.Len(); got != expected {
			return p.lengthError(in, "offset buffer", got, expected)
		}
		childExpected := 0
		if n := offsets.Len(); n > 0 {
			_, last, err := offsets.Range(n - 1)
			if err != nil {
				return err
			}
			childExpected = last
		}
		for _, child := range in.Children {
			if err := p.checkLengths(child, childExpected); err != nil {
				return err
			}
		}

	case OpStruct:
		for _, child := range in.Children {
			if err := p.checkLengths(child, expected); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Program) lengthError(in *Instr, what string, got, expected int) error {
	return errors.Newf(errors.ErrorTypeDataIntegrity,
		"%s for field %s holds %d entries, expected %d", what, in.Path, got, expected).
		WithField(in.Path)
}

// dump logs the linearized instruction list at debug level.
func (p *Program) dump() {
	log := logger.Named("deserialization")
	log.Debug("deserialization program",
		zap.Int("instructions", len(p.Instructions)),
		zap.Int("root", p.Root),
		zap.Int("items", p.NumItems),
	)
	for i, in := range p.Instructions {
		log.Debug("instr",
			zap.Int("index", i),
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
