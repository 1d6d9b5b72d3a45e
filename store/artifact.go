package store

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
)

// ArtifactVersion is written into every artifact. Readers reject other
// versions.
const ArtifactVersion = 1

// Artifact is a compiled program as written by "tmbasic build": the
// serialized bytecode plus the names needed to disassemble it.
type Artifact struct {
	Version    int      `cbor:"1,keyasint"`
	SourceHash string   `cbor:"2,keyasint"`
	Program    []byte   `cbor:"3,keyasint"`
	Procedures []string `cbor:"4,keyasint,omitempty"`
	Globals    []string `cbor:"5,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// NewArtifact packages a successfully compiled program.
func NewArtifact(sourceHash string, prog *compiler.CompiledProgram) (*Artifact, error) {
	if !prog.OK() {
		return nil, fmt.Errorf("store: program has %d compile errors", len(prog.Errors))
	}
	data, err := prog.Program.Serialize()
	if err != nil {
		return nil, fmt.Errorf("store: serialize program: %w", err)
	}
	return &Artifact{
		Version:    ArtifactVersion,
		SourceHash: sourceHash,
		Program:    data,
		Procedures: prog.ProcedureNames(),
		Globals:    prog.GlobalNames(),
	}, nil
}

// LoadProgram decodes the bytecode carried by a.
func (a *Artifact) LoadProgram() (*bytecode.Program, error) {
	p, err := bytecode.Deserialize(a.Program)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return p, nil
}

// MarshalArtifact encodes a in canonical CBOR.
func MarshalArtifact(a *Artifact) ([]byte, error) {
	return encMode.Marshal(a)
}

// UnmarshalArtifact decodes an artifact and checks its version.
func UnmarshalArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("store: unmarshal artifact: %w", err)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("store: artifact version %d, want %d", a.Version, ArtifactVersion)
	}
	return &a, nil
}

// WriteArtifact writes a to path.
func WriteArtifact(path string, a *Artifact) error {
	data, err := MarshalArtifact(a)
	if err != nil {
		return fmt.Errorf("store: marshal artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: write artifact: %w", err)
	}
	return nil
}

// ReadArtifact reads an artifact written by WriteArtifact.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read artifact: %w", err)
	}
	return UnmarshalArtifact(data)
}
