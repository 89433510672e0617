// Copyright 2025 Blockscout

package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blockscout/indexing-core/internal/model"
)

func TestFingerprint_StableAcrossSourceOrdering(t *testing.T) {
	base := Request{
		BytecodeType:     model.BytecodeRuntime,
		VerificationType: model.VerificationMultiPart,
		TargetBytecode:   []byte{0x60, 0x80},
	}

	a := base
	a.MultiPart = &MultiPartContent{
		Sources:   map[string]string{"A.sol": "contract A {}", "B.sol": "contract B {}"},
		Libraries: map[string]string{"Lib": "0x1"},
	}
	b := base
	b.MultiPart = &MultiPartContent{
		Sources:   map[string]string{"B.sol": "contract B {}", "A.sol": "contract A {}"},
		Libraries: map[string]string{"Lib": "0x1"},
	}

	assert.Equal(t, Fingerprint(a), Fingerprint(b), "map iteration order must not affect the fingerprint")
}

func TestFingerprint_DiffersOnContentChange(t *testing.T) {
	base := Request{
		BytecodeType:     model.BytecodeRuntime,
		VerificationType: model.VerificationMultiPart,
		TargetBytecode:   []byte{0x60, 0x80},
		MultiPart:        &MultiPartContent{Sources: map[string]string{"A.sol": "contract A {}"}},
	}
	changed := base
	changed.MultiPart = &MultiPartContent{Sources: map[string]string{"A.sol": "contract A { uint x; }"}}

	assert.NotEqual(t, Fingerprint(base), Fingerprint(changed))
}

func TestFingerprint_DiffersOnBytecodeType(t *testing.T) {
	base := Request{
		VerificationType: model.VerificationMultiPart,
		TargetBytecode:   []byte{0x60, 0x80},
		MultiPart:        &MultiPartContent{Sources: map[string]string{"A.sol": "contract A {}"}},
	}
	creation := base
	creation.BytecodeType = model.BytecodeCreation
	runtime := base
	runtime.BytecodeType = model.BytecodeRuntime

	assert.NotEqual(t, Fingerprint(creation), Fingerprint(runtime))
}
