package chain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"reflect"
	"runtime"
	"sort"
)

// Hash computes the stable chain_hash digest for a node: the caller's tag
// (normally the registered factory name) followed by each constructor
// argument. A PipeChain argument contributes its own ChainHash, so the
// digest of a composite recurses into its children automatically. This
// mirrors the original implementation's pipex_hash/chain_hash, minus the
// metaclass-driven field introspection Go has no equivalent of — here each
// node lists its own hash-relevant parts explicitly.
func Hash(tag string, parts ...any) string {
	h := sha1.New()
	h.Write([]byte(tag))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(hashPart(p)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func hashPart(p any) string {
	if c, ok := p.(PipeChain); ok {
		return c.ChainHash()
	}
	if name, ok := funcName(p); ok {
		return name
	}
	switch v := p.(type) {
	case nil:
		return "<nil>"
	case string:
		return v
	case []string:
		sorted := append([]string(nil), v...)
		sort.Strings(sorted)
		return fmt.Sprintf("%v", sorted)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = hashPart(e)
		}
		return fmt.Sprintf("%v", parts)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// funcName reports the package-qualified name backing a function value, the
// Go analog of the original implementation hashing callables as
// "module.name" rather than by object identity. Closures still resolve to
// a stable symbol name derived from their defining function, which is
// enough for chain_hash's determinism requirement: the same source
// expression compiled the same way always yields the same name.
func funcName(p any) (string, bool) {
	v := reflect.ValueOf(p)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return "", false
	}
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return "", false
	}
	return fn.Name(), true
}
