package ticket

import (
	"testing"

	"github.com/multiformats/go-multibase"
)

func mustDecodeMultibase(t *testing.T, s string) (multibase.Encoding, []byte) {
	t.Helper()
	enc, b, err := multibase.Decode(s)
	if err != nil {
		t.Fatalf("multibase.Decode: %v", err)
	}
	return enc, b
}

func mustEncodeMultibase(t *testing.T, b []byte) string {
	t.Helper()
	s, err := multibase.Encode(multibase.Base32, b)
	if err != nil {
		t.Fatalf("multibase.Encode: %v", err)
	}
	return s
}
