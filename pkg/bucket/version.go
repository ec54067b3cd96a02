// Package bucket implements the versioned, cache-aware Source+Sink boundary:
// a Bucket persists a record stream behind a pluggable Backend and skips
// rewriting when its metadata shows the upstream source data and
// transformer chain have not changed since the last write.
package bucket

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a dotted positional version tag on a bucket's on-disk layout,
// compared component-wise.
type Version struct {
	positions []int
}

// NewVersion builds a Version from its dotted components.
func NewVersion(positions ...int) Version {
	return Version{positions: append([]int(nil), positions...)}
}

// ParseVersion parses a dotted version string such as "0.0.1".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	positions := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("bucket: invalid version %q: %w", s, err)
		}
		positions[i] = n
	}
	return Version{positions: positions}, nil
}

func (v Version) String() string {
	parts := make([]string, len(v.positions))
	for i, p := range v.positions {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

// Less reports whether v sorts before other by lexicographic component
// comparison, the same ordering the original's total_ordering gives
// BucketVersion.
func (v Version) Less(other Version) bool {
	for i := 0; i < len(v.positions) && i < len(other.positions); i++ {
		if v.positions[i] != other.positions[i] {
			return v.positions[i] < other.positions[i]
		}
	}
	return len(v.positions) < len(other.positions)
}

func (v Version) Equal(other Version) bool {
	if len(v.positions) != len(other.positions) {
		return false
	}
	for i := range v.positions {
		if v.positions[i] != other.positions[i] {
			return false
		}
	}
	return true
}
