// Package dist serializes compiled programs so the CLI can emit bytecode
// once and run it later.
package dist

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/corvid-lang/corvid/bytecode"
)

// SnapshotVersion is the current snapshot format version. Increment when
// making incompatible changes to the chunk encoding.
const SnapshotVersion uint16 = 1

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Program is a compiled snapshot: the entry chunk plus every function
// chunk it can call.
type Program struct {
	Version   uint16                                  `cbor:"version"`
	Main      *bytecode.Chunk                         `cbor:"main"`
	Functions map[bytecode.FunctionID]*bytecode.Chunk `cbor:"functions,omitempty"`
}

// NewProgram wraps a chunk and its function table in the current version.
func NewProgram(main *bytecode.Chunk, funcs map[bytecode.FunctionID]*bytecode.Chunk) *Program {
	return &Program{Version: SnapshotVersion, Main: main, Functions: funcs}
}

// MarshalProgram serializes a Program to CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// UnmarshalProgram deserializes a Program from CBOR bytes and checks its
// version.
func UnmarshalProgram(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("dist: unmarshal program: %w", err)
	}
	if p.Version != SnapshotVersion {
		return nil, fmt.Errorf("dist: unsupported snapshot version %d (want %d)", p.Version, SnapshotVersion)
	}
	if p.Main == nil {
		return nil, fmt.Errorf("dist: snapshot has no entry chunk")
	}
	return &p, nil
}
