package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// encoding to change without colliding with old hashes.
const (
	DomainFunction = "peephole/function/v1"
	DomainConfig   = "peephole/config/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash hashes the canonical JSON of v under domain.
func ContentHash(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return hashWithDomain(domain, data), nil
}

// Snapshot returns the canonical-JSON form of f: its name, properties and
// printed body in program order. Instruction IDs and erased arena slots do
// not appear, so two graphs with the same printed form share a snapshot.
func Snapshot(f *Function) map[string]any {
	body := make([]string, 0, f.NumInstrs())
	for _, mi := range f.Instrs() {
		body = append(body, PrintInstr(f, mi))
	}
	return map[string]any{
		"name":  f.Name,
		"props": f.Props.names(),
		"body":  body,
	}
}

// FunctionHash identifies the current state of f.
func FunctionHash(f *Function) string {
	h, err := ContentHash(DomainFunction, Snapshot(f))
	if err != nil {
		// Snapshot only holds strings, which always encode.
		panic(err)
	}
	return h
}
