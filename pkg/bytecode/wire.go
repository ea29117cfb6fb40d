package bytecode

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
)

// WireMagic identifies a serialized program.
const WireMagic = "SPYB"

// WireVersion is the current serialized program format version.
const WireVersion = 1

// cborEncMode uses canonical mode so that equal programs encode to equal
// bytes, which Fingerprint depends on.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// wireProgram is the serialized form: a flat array of tagged operation
// records plus the function entry table.
type wireProgram struct {
	Magic   string        `cbor:"1,keyasint"`
	Version int           `cbor:"2,keyasint"`
	Globals int           `cbor:"3,keyasint,omitempty"`
	Entries []Entry       `cbor:"4,keyasint,omitempty"`
	Code    []Instruction `cbor:"5,keyasint"`
}

// Marshal serializes a Program to CBOR bytes.
func Marshal(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(&wireProgram{
		Magic:   WireMagic,
		Version: WireVersion,
		Globals: p.globals,
		Entries: p.entries,
		Code:    p.code,
	})
}

// Unmarshal deserializes and verifies a Program from CBOR bytes.
func Unmarshal(data []byte) (*Program, error) {
	var w wireProgram
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, WireError.Wrap(err, "unmarshal program")
	}
	if w.Magic != WireMagic {
		return nil, WireError.New("bad magic %q", w.Magic)
	}
	if w.Version != WireVersion {
		return nil, WireError.New("unsupported version %d (want %d)", w.Version, WireVersion)
	}
	p := &Program{code: w.Code, entries: w.Entries, globals: w.Globals}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// Fingerprint returns a content hash of the program's canonical encoding.
func Fingerprint(p *Program) (uint64, error) {
	data, err := Marshal(p)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}
