package ir

import "fmt"

// DefaultMaxKeyLength bounds the number of fields a species may declare.
const DefaultMaxKeyLength = 250

// ValidateKey checks that key is a well-formed signature key: only the
// storable codes L, I, J, F, D, and no longer than maxLen.
func ValidateKey(key string, maxLen int) error {
	if len(key) > maxLen {
		return &Error{
			Kind:    KindContract,
			Op:      "validate key",
			Key:     key,
			Message: fmt.Sprintf("signature key has %d fields, limit is %d", len(key), maxLen),
		}
	}
	for i := 0; i < len(key); i++ {
		t, err := BasicTypeFromChar(key[i])
		if err != nil || !t.IsArg() {
			return &Error{
				Kind:    KindContract,
				Op:      "validate key",
				Key:     key,
				Message: fmt.Sprintf("invalid field code %q at %d: must be one of LIJFD", key[i], i),
			}
		}
	}
	return nil
}

// FieldTypes decodes a signature key into its field types.
// The key must already be valid.
func FieldTypes(key string) []BasicType {
	types := make([]BasicType, len(key))
	for i := 0; i < len(key); i++ {
		t, _ := BasicTypeFromChar(key[i])
		types[i] = t
	}
	return types
}

// KeyOf renders field types as a signature key.
func KeyOf(types []BasicType) string {
	buf := make([]byte, len(types))
	for i, t := range types {
		buf[i] = t.Char()
	}
	return string(buf)
}
