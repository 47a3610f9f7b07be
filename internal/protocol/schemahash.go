// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// schemaHashSeparator is appended to the canonicalized schema bytes
// before finalizing the hash. Both host and parser must compute it
// identically for schema_hash to agree.
const schemaHashSeparator = 0x1F

// CanonicalizeSchema re-encodes a JSON schema document with
// deterministic key ordering, so the same schema produces the same
// bytes (and hash) regardless of how it was originally formatted.
// encoding/json already sorts map keys lexicographically on marshal,
// which is sufficient canonicalization for a JSON schema document (no
// whitespace, no key-order ambiguity).
func CanonicalizeSchema(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("protocol: parsing schema for canonicalization: %w", err)
	}
	canon, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: re-marshaling canonical schema: %w", err)
	}
	return canon, nil
}

// SchemaHash computes the hex-encoded Blake3 hash of a schema
// document's canonical bytes plus the 0x1F separator byte, matching
// the bytes a parser must produce for output_begin's schema_hash.
func SchemaHash(raw []byte) (string, error) {
	canon, err := CanonicalizeSchema(raw)
	if err != nil {
		return "", err
	}
	h := blake3.New()
	h.Write(canon)
	h.Write([]byte{schemaHashSeparator})
	return hex.EncodeToString(h.Sum(nil)), nil
}
