package cache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/matzehuels/refgraph/pkg/graph"
)

const (
	// DefaultBufferSize is the initial capacity of a [Writer].
	DefaultBufferSize = 64 << 10

	// GrowthMargin is the minimum headroom a [Writer] keeps before each write.
	// When headroom drops below it the buffer doubles.
	GrowthMargin = 1 << 10

	// EOFMarker terminates every cache file.
	EOFMarker = "#EOF#"
)

// Writer encodes cache records into a growing byte buffer.
//
// The buffer starts at a fixed size and doubles whenever remaining headroom
// falls under [GrowthMargin], so writing n bytes of variable-length data costs
// O(n) amortized copying.
type Writer struct {
	buf []byte
}

// NewWriter creates a writer with the given initial capacity.
// A non-positive size selects [DefaultBufferSize].
func NewWriter(size int) *Writer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Writer{buf: make([]byte, 0, size)}
}

func (w *Writer) ensure(n int) {
	if cap(w.buf)-len(w.buf) >= n+GrowthMargin {
		return
	}
	newCap := max(cap(w.buf), 1)
	for newCap-len(w.buf) < n+GrowthMargin {
		newCap *= 2
	}
	grown := make([]byte, len(w.buf), newCap)
	copy(grown, w.buf)
	w.buf = grown
}

// WriteInt16 appends a little-endian 16-bit integer.
func (w *Writer) WriteInt16(v int16) {
	w.ensure(2)
	w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(v))
}

// WriteInt32 appends a little-endian 32-bit integer.
func (w *Writer) WriteInt32(v int32) {
	w.ensure(4)
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// WriteInt64 appends a little-endian 64-bit integer.
func (w *Writer) WriteInt64(v int64) {
	w.ensure(8)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

// WriteCount appends a collection length as int32.
func (w *Writer) WriteCount(n int) {
	if n > math.MaxInt32 {
		panic(fmt.Sprintf("cache: count %d overflows int32", n))
	}
	w.WriteInt32(int32(n))
}

// WriteString appends an int32 length prefix followed by the string bytes.
func (w *Writer) WriteString(s string) {
	w.WriteCount(len(s))
	w.ensure(len(s))
	w.buf = append(w.buf, s...)
}

// WriteEOF appends the terminal marker.
func (w *Writer) WriteEOF() { w.WriteString(EOFMarker) }

// Bytes returns the encoded bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Cap returns the current buffer capacity.
func (w *Writer) Cap() int { return cap(w.buf) }

// Reader decodes cache records. The first structural failure is sticky: later
// reads return zero values and [Reader.Err] reports the failure wrapped in
// [ErrCorrupt].
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader creates a reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first decoding failure, if any.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s at offset %d", ErrCorrupt, fmt.Sprintf(format, args...), r.off)
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.fail("need %d bytes, have %d", n, r.Remaining())
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadInt16 reads a little-endian 16-bit integer.
func (r *Reader) ReadInt16() int16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(b))
}

// ReadInt32 reads a little-endian 32-bit integer.
func (r *Reader) ReadInt32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

// ReadInt64 reads a little-endian 64-bit integer.
func (r *Reader) ReadInt64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// ReadCount reads a collection length. Negative lengths and lengths larger than
// the remaining input (every element takes at least one byte) are corrupt.
func (r *Reader) ReadCount() int {
	n := int(r.ReadInt32())
	if r.err != nil {
		return 0
	}
	if n < 0 || n > r.Remaining() {
		r.fail("implausible count %d", n)
		return 0
	}
	return n
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() string {
	n := int(r.ReadInt32())
	if r.err != nil {
		return ""
	}
	return string(r.take(n))
}

// ReadEOF consumes the terminal marker and checks that nothing follows it.
// It returns the reader's error state afterwards.
func (r *Reader) ReadEOF() error {
	marker := r.ReadString()
	if r.err == nil && marker != EOFMarker {
		r.fail("bad EOF marker %q", marker)
	}
	if r.err == nil && r.Remaining() != 0 {
		r.fail("%d trailing bytes", r.Remaining())
	}
	return r.err
}

// =============================================================================
// Dependency lists
// =============================================================================

// WriteDependencies encodes a dependency list: count, then per entry the target
// id, dependency type id, target type and a length-prefixed path whose segments
// are a string plus an int16 kind tag.
func WriteDependencies(w *Writer, deps []graph.Dependency) {
	w.WriteCount(len(deps))
	for _, d := range deps {
		w.WriteString(d.Target.ID)
		w.WriteString(d.TypeID)
		w.WriteString(d.Target.Type)
		w.WriteCount(len(d.Path))
		for _, s := range d.Path {
			w.WriteString(s.Name)
			w.WriteInt16(int16(s.Kind))
		}
	}
}

// ReadDependencies decodes a list written by [WriteDependencies].
// Empty lists decode as nil.
func ReadDependencies(r *Reader) []graph.Dependency {
	n := r.ReadCount()
	if n == 0 {
		return nil
	}
	deps := make([]graph.Dependency, 0, n)
	for range n {
		var d graph.Dependency
		d.Target.ID = r.ReadString()
		d.TypeID = r.ReadString()
		d.Target.Type = r.ReadString()
		if segs := r.ReadCount(); segs > 0 {
			d.Path = make([]graph.PathSegment, segs)
			for i := range d.Path {
				d.Path[i].Name = r.ReadString()
				d.Path[i].Kind = graph.SegmentKind(r.ReadInt16())
			}
		}
		if r.err != nil {
			return nil
		}
		deps = append(deps, d)
	}
	return deps
}
