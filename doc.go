// Package quiver converts sequences of arbitrarily shaped Go records into
// columnar memory and back.
//
// The conversion is split into three phases, each usable on its own:
//
// 1. Schema tracing: records are replayed as a serialization event stream
// and a field tree is inferred from the events alone, widening numeric
// types and marking nullability as records disagree (schema.Tracer).
//
// 2. Serialization: the field tree is compiled into a flat buffer-append
// program, and an interpreter drives the event stream of the actual records
// through it, filling validity bitmaps, fixed-width value buffers, offset
// buffers and byte payloads (serialization.Compile, serialization.Interpreter).
//
// 3. Deserialization: the same field tree plus the per-field buffer mapping
// compile into a mirror read program whose source replays the original event
// stream row by row (deserialization.Compile, deserialization.Source).
//
// # Quick Start
//
//	type Record struct {
//		Name  string  `json:"name"`
//		Score float64 `json:"score"`
//	}
//
//	records := []Record{{"a", 1.0}, {"b", 2.5}}
//
//	fields, err := quiver.TraceFields(records)
//	if err != nil {
//		return err
//	}
//	cols, err := quiver.ToColumns(records, fields)
//	if err != nil {
//		return err
//	}
//
//	var back []Record
//	if err := quiver.FromColumns(cols, &back); err != nil {
//		return err
//	}
//
// The columnar layout follows the Arrow memory model; the arrowconv package
// turns Columns into arrow-go arrays and record batches and extracts them
// back.
package quiver
