package syncnet

import (
	"crypto/ed25519"
	"fmt"
)

// The hello frame opens a subscription: it carries the document public key,
// whose possession is the read-capability proof. The server only ever
// compares its hash against locally-known documents, so a subscriber
// guessing document ids learns nothing.
var helloMagic = [4]byte{'k', 'm', 'p', 'h'}

const helloVersion = 1

// EncodeHello renders the subscription hello frame.
func EncodeHello(docPub ed25519.PublicKey) ([]byte, error) {
	if len(docPub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("syncnet: document key must be %d bytes, got %d", ed25519.PublicKeySize, len(docPub))
	}
	out := make([]byte, 0, len(helloMagic)+1+len(docPub))
	out = append(out, helloMagic[:]...)
	out = append(out, helloVersion)
	return append(out, docPub...), nil
}

// DecodeHello parses a subscription hello frame.
func DecodeHello(b []byte) (ed25519.PublicKey, error) {
	if len(b) != len(helloMagic)+1+ed25519.PublicKeySize {
		return nil, fmt.Errorf("syncnet: hello frame has %d bytes", len(b))
	}
	if [4]byte(b[:4]) != helloMagic {
		return nil, fmt.Errorf("syncnet: bad hello magic %q", b[:4])
	}
	if b[4] != helloVersion {
		return nil, fmt.Errorf("syncnet: unsupported hello version %d", b[4])
	}
	return ed25519.PublicKey(append([]byte(nil), b[5:]...)), nil
}
