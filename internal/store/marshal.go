package store

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/rps/internal/ir"
)

// marshalObject converts an IRObject to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalObject(obj ir.IRObject) (string, error) {
	if obj == nil {
		obj = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT to IRObject.
// IRObject.UnmarshalJSON decodes integers via json.Number, so values above
// 2^53 keep full precision.
func unmarshalObject(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// digestToBlob stores the zero digest as NULL.
func digestToBlob(d ir.Digest) any {
	if d.IsZero() {
		return nil
	}
	return d[:]
}

func blobToDigest(b []byte) (ir.Digest, error) {
	var d ir.Digest
	switch len(b) {
	case 0:
		return d, nil
	case len(d):
		copy(d[:], b)
		return d, nil
	default:
		return d, fmt.Errorf("commitment is %d bytes, want %d", len(b), len(d))
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// toInt64 converts an amount for an INTEGER column.
func toInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("amount %d exceeds INTEGER range", v)
	}
	return int64(v), nil
}

func toUint64(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("negative amount %d", v)
	}
	return uint64(v), nil
}
