// Package record defines the immutable record and atom types that flow
// through a pipeline.
package record

import "strings"

// Format tags an Atom's payload so that backends know how to serialize it.
// Built-in formats cover the common payload shapes; a backend may also see
// an extension string supplied by a caller's own channel values.
type Format string

const (
	FormatData    Format = "data"
	FormatBlob    Format = "blob"
	FormatImage   Format = "image"
	FormatNDArray Format = "ndarray"
	FormatText    Format = "text"
)

// Atom is an immutable (value, format) pair. Format is purely descriptive
// metadata driving serialization choice; it never changes a record's
// semantic identity.
type Atom struct {
	Value  any
	Format Format
}

// InferFormat derives a Format for value written to channel channelName,
// the same rule the directory and archive backends rely on to pick a file
// extension or dataset shape.
func InferFormat(channelName string, value any) Format {
	switch v := value.(type) {
	case nil, string, int, int32, int64, float32, float64, bool:
		return FormatData
	case []byte:
		return FormatBlob
	case NDArray:
		if hasImagePrefix(channelName) {
			return FormatImage
		}
		return FormatNDArray
	default:
		_ = v
		if hasTextPrefix(channelName) {
			return FormatText
		}
		if isScalarSlice(value) {
			return FormatData
		}
		return FormatBlob
	}
}

// NDArray is the minimal tensor-shaped payload this engine understands
// without depending on a concrete array library; concrete I/O adapters
// (image decoders, numeric libraries) are out of scope per spec and map
// their own types onto this one at the boundary.
type NDArray struct {
	Shape []int
	Data  []float64
}

func hasImagePrefix(channelName string) bool {
	return strings.HasPrefix(channelName, "image") || strings.HasPrefix(channelName, "img")
}

func hasTextPrefix(channelName string) bool {
	return strings.HasPrefix(channelName, "text")
}

func isScalarSlice(value any) bool {
	switch value.(type) {
	case []string, []int, []float64, []any:
		return true
	default:
		return false
	}
}
