package schema

import (
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/event"
	stringpool "github.com/ajitpratap0/quiver/pkg/strings"
)

// TracingOptions controls schema inference.
type TracingOptions struct {
	// MapAsStruct traces string-keyed map events as Struct nodes, producing
	// one column per distinct key observed across the collection. When false
	// map events produce true Map nodes (compiled as List<Struct<key, value>>).
	MapAsStruct bool
	// AllowNullFields resolves fields that were only ever observed as null to
	// the Null data type instead of failing.
	AllowNullFields bool
}

// NewTracingOptions returns the default options: maps trace as structs and
// undetermined fields are rejected.
func NewTracingOptions() TracingOptions {
	return TracingOptions{MapAsStruct: true}
}

type nodeKind uint8

const (
	nodeUnknown nodeKind = iota
	nodePrimitive
	nodeStruct
	nodeList
	nodeMap
)

// node is one partially-inferred field. Nodes merge observations across
// repeated traversals of the record collection.
type node struct {
	path     string
	kind     nodeKind
	nullable bool

	primitive DataType

	// struct
	names    []string
	index    map[string]int
	children []*node
	records  int

	// list
	item *node

	// map
	key   *node
	value *node
}

func newNode(path string) *node {
	return &node{path: path}
}

type frameState uint8

const (
	stateValue frameState = iota
	stateStructFields
	stateListItems
	stateMapEntries
)

type traceFrame struct {
	n         *node
	state     frameState
	mapEvents bool         // struct observed through map events; keys arrive as Str
	expectKey bool         // map entry parity
	seen      map[int]bool // struct children seen in the current record
}

// Tracer is an event sink that incrementally infers a field tree purely from
// the event sequence it observes. Feed it the stripped trace of a record
// collection (one value per record) and finalize with ToField.
type Tracer struct {
	opts  TracingOptions
	root  *node
	stack []*traceFrame
	err   error
}

// NewTracer creates a tracer whose root field is reported at the given path
// (conventionally "$").
func NewTracer(path string, opts TracingOptions) *Tracer {
	root := newNode(path)
	return &Tracer{
		opts:  opts,
		root:  root,
		stack: []*traceFrame{{n: root, state: stateValue}},
	}
}

// Accept implements event.Sink.
func (t *Tracer) Accept(ev event.Event) error {
	if t.err != nil {
		return t.err
	}
	if err := t.accept(ev); err != nil {
		t.err = err
		return err
	}
	return nil
}

func (t *Tracer) accept(ev event.Event) error {
	top := t.stack[len(t.stack)-1]

	switch top.state {
	case stateValue:
		return t.acceptValue(top, ev)

	case stateStructFields:
		switch {
		case !top.mapEvents && ev.Kind == event.KindFieldName,
			top.mapEvents && ev.Kind == event.KindStr:
			child, err := t.ensureChild(top.n, ev.Str)
			if err != nil {
				return err
			}
			top.seen[t.childIndex(top.n, ev.Str)] = true
			t.push(child)
			return nil
		case !top.mapEvents && ev.Kind == event.KindEndStruct,
			top.mapEvents && ev.Kind == event.KindEndMap:
			// Fields absent from this record are nullable.
			for i, child := range top.n.children {
				if !top.seen[i] {
					child.nullable = true
				}
			}
			t.complete()
			return nil
		case top.mapEvents && ev.Kind != event.KindStr && ev.Kind != event.KindEndMap:
			return errors.Newf(errors.ErrorTypeSchemaInference,
				"cannot trace map with non-string key %s as struct for field %s; disable MapAsStruct",
				ev, top.n.path).WithField(top.n.path)
		default:
			return t.structuralError(top.n, ev, "field name or end of struct")
		}

	case stateListItems:
		switch ev.Kind {
		case event.KindItem:
			t.push(top.n.item)
			return nil
		case event.KindEndSequence:
			t.complete()
			return nil
		default:
			return t.structuralError(top.n, ev, "Item or EndSequence")
		}

	case stateMapEntries:
		if ev.Kind == event.KindEndMap {
			if !top.expectKey {
				return t.structuralError(top.n, ev, "map value")
			}
			t.complete()
			return nil
		}
		var child *node
		if top.expectKey {
			child = top.n.key
		} else {
			child = top.n.value
		}
		top.expectKey = !top.expectKey
		t.push(child)
		// The current event is the first event of the entry's key or value.
		return t.accept(ev)
	}

	return errors.Newf(errors.ErrorTypeInternal, "tracer in impossible state %d", top.state)
}

func (t *Tracer) acceptValue(top *traceFrame, ev event.Event) error {
	n := top.n

	switch ev.Kind {
	case event.KindSome:
		// Presence marker; the wrapped value follows.
		return nil

	case event.KindNull:
		n.nullable = true
		t.complete()
		return nil

	case event.KindStartStruct:
		if err := t.observeStruct(n); err != nil {
			return err
		}
		top.state = stateStructFields
		top.mapEvents = false
		top.seen = make(map[int]bool, len(n.children))
		return nil

	case event.KindStartMap:
		// The root describes the record shape, so map-shaped records always
		// trace as a struct; MapAsStruct only decides for nested map values.
		if t.opts.MapAsStruct || n == t.root {
			if err := t.observeStruct(n); err != nil {
				return err
			}
			top.state = stateStructFields
			top.mapEvents = true
			top.seen = make(map[int]bool, len(n.children))
			return nil
		}
		if err := t.observeMap(n); err != nil {
			return err
		}
		top.state = stateMapEntries
		top.expectKey = true
		return nil

	case event.KindStartSequence:
		if err := t.observeList(n); err != nil {
			return err
		}
		top.state = stateListItems
		return nil

	case event.KindBool, event.KindI8, event.KindI16, event.KindI32, event.KindI64,
		event.KindU8, event.KindU16, event.KindU32, event.KindU64,
		event.KindF32, event.KindF64, event.KindStr, event.KindBytes:
		if err := t.observePrimitive(n, dataTypeOfEvent(ev.Kind)); err != nil {
			return err
		}
		t.complete()
		return nil

	default:
		return t.structuralError(n, ev, "a value")
	}
}

// push adds a value frame for child.
func (t *Tracer) push(child *node) {
	t.stack = append(t.stack, &traceFrame{n: child, state: stateValue})
}

// complete finishes the current value. The root frame is never popped: it
// resets to expect the next record of the collection.
func (t *Tracer) complete() {
	if len(t.stack) == 1 {
		t.stack[0] = &traceFrame{n: t.root, state: stateValue}
		return
	}
	t.stack = t.stack[:len(t.stack)-1]
}

func (t *Tracer) observeStruct(n *node) error {
	switch n.kind {
	case nodeUnknown:
		n.kind = nodeStruct
		n.index = map[string]int{}
	case nodeStruct:
	default:
		return t.mergeError(n, "Struct")
	}
	n.records++
	return nil
}

func (t *Tracer) observeList(n *node) error {
	switch n.kind {
	case nodeUnknown:
		n.kind = nodeList
		n.item = newNode(stringpool.Sprintf("%s[]", n.path))
	case nodeList:
	default:
		return t.mergeError(n, "List")
	}
	return nil
}

func (t *Tracer) observeMap(n *node) error {
	switch n.kind {
	case nodeUnknown:
		n.kind = nodeMap
		n.key = newNode(stringpool.JoinPath(n.path, "key"))
		n.value = newNode(stringpool.JoinPath(n.path, "value"))
	case nodeMap:
	default:
		return t.mergeError(n, "Map")
	}
	return nil
}

func (t *Tracer) observePrimitive(n *node, dt DataType) error {
	switch n.kind {
	case nodeUnknown:
		n.kind = nodePrimitive
		n.primitive = dt
		return nil
	case nodePrimitive:
		merged, err := widen(n.primitive, dt, n.path)
		if err != nil {
			return err
		}
		n.primitive = merged
		return nil
	default:
		return t.mergeError(n, dt.String())
	}
}

func (t *Tracer) ensureChild(n *node, name string) (*node, error) {
	if idx, ok := n.index[name]; ok {
		return n.children[idx], nil
	}
	child := newNode(stringpool.JoinPath(n.path, name))
	if n.records > 1 {
		// The field was absent from every earlier record.
		child.nullable = true
	}
	n.index[name] = len(n.children)
	n.names = append(n.names, name)
	n.children = append(n.children, child)
	return child, nil
}

func (t *Tracer) childIndex(n *node, name string) int {
	return n.index[name]
}

func (t *Tracer) mergeError(n *node, observed string) error {
	return errors.Newf(errors.ErrorTypeSchemaInference,
		"cannot merge %s with %s for field %s", t.kindName(n), observed, n.path).
		WithField(n.path)
}

func (t *Tracer) kindName(n *node) string {
	switch n.kind {
	case nodePrimitive:
		return n.primitive.String()
	case nodeStruct:
		return "Struct"
	case nodeList:
		return "List"
	case nodeMap:
		return "Map"
	default:
		return "Unknown"
	}
}

func (t *Tracer) structuralError(n *node, ev event.Event, expected string) error {
	return errors.Newf(errors.ErrorTypeSchemaInference,
		"unexpected %s for field %s, expected %s", ev, n.path, expected).
		WithField(n.path)
}

// ToField finalizes the traced tree into an immutable GenericField. Tracing
// must be complete (no open composites); fields whose type could never be
// determined are rejected unless AllowNullFields is set. A root that was
// never observed resolves to the Null data type so callers can distinguish
// "no records" from genuine scalar roots.
func (t *Tracer) ToField(name string) (GenericField, error) {
	if t.err != nil {
		return GenericField{}, t.err
	}
	if len(t.stack) != 1 || t.stack[0].state != stateValue {
		return GenericField{}, errors.New(errors.ErrorTypeSchemaInference,
			"tracing incomplete: unbalanced events").WithField(t.root.path)
	}
	return t.toField(t.root, name, true)
}

func (t *Tracer) toField(n *node, name string, isRoot bool) (GenericField, error) {
	switch n.kind {
	case nodeUnknown:
		if !isRoot && !t.opts.AllowNullFields {
			return GenericField{}, errors.Newf(errors.ErrorTypeSchemaInference,
				"cannot determine data type for field %s: only null values observed", n.path).
				WithField(n.path)
		}
		return GenericField{Name: name, DataType: Null, Nullable: true}, nil

	case nodePrimitive:
		return GenericField{Name: name, DataType: n.primitive, Nullable: n.nullable}, nil

	case nodeStruct:
		children := make([]GenericField, 0, len(n.children))
		for i, child := range n.children {
			cf, err := t.toField(child, n.names[i], false)
			if err != nil {
				return GenericField{}, err
			}
			children = append(children, cf)
		}
		return GenericField{Name: name, DataType: Struct, Nullable: n.nullable, Children: children}, nil

	case nodeList:
		item, err := t.toField(n.item, "element", false)
		if err != nil {
			return GenericField{}, err
		}
		return NewListField(name, n.nullable, item), nil

	case nodeMap:
		key, err := t.toField(n.key, "key", false)
		if err != nil {
			return GenericField{}, err
		}
		value, err := t.toField(n.value, "value", false)
		if err != nil {
			return GenericField{}, err
		}
		return NewMapField(name, n.nullable, key, value), nil
	}

	return GenericField{}, errors.Newf(errors.ErrorTypeInternal,
		"tracer node %s in impossible kind", n.path)
}

func dataTypeOfEvent(k event.Kind) DataType {
	switch k {
	case event.KindBool:
		return Bool
	case event.KindI8:
		return I8
	case event.KindI16:
		return I16
	case event.KindI32:
		return I32
	case event.KindI64:
		return I64
	case event.KindU8:
		return U8
	case event.KindU16:
		return U16
	case event.KindU32:
		return U32
	case event.KindU64:
		return U64
	case event.KindF32:
		return F32
	case event.KindF64:
		return F64
	case event.KindStr:
		return Utf8
	case event.KindBytes:
		return Binary
	default:
		return Unknown
	}
}
