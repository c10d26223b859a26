package xrpl

import (
	"bytes"
	"testing"
)

func testAddress(fill byte) string {
	payload := make([]byte, 21)
	payload[0] = accountIDPrefix
	for i := 1; i < len(payload); i++ {
		payload[i] = fill
	}
	return encodeChecked(payload)
}

func TestIsValidAddress(t *testing.T) {
	addr := testAddress(0x42)
	if addr[0] != 'r' {
		t.Fatalf("encoded address should start with 'r', got %q", addr)
	}
	if !IsValidAddress(addr) {
		t.Errorf("expected %q to be valid", addr)
	}
}

func TestIsValidAddress_Rejects(t *testing.T) {
	valid := testAddress(0x01)

	cases := map[string]string{
		"empty":          "",
		"wrong prefix":   "x" + valid[1:],
		"too short":      "rHb9CJAWyB4rj9",
		"bad charset":    "r0000000000000000000000000",
		"bad checksum":   valid[:len(valid)-1] + flipChar(valid[len(valid)-1]),
		"seed not addr":  mustEncodeSeed(bytes.Repeat([]byte{7}, 16)),
		"random garbage": "not an address at all",
	}

	for name, addr := range cases {
		if IsValidAddress(addr) {
			t.Errorf("%s: expected %q to be invalid", name, addr)
		}
	}
}

func TestDecodeChecked_RoundTrip(t *testing.T) {
	payload := append([]byte{accountIDPrefix}, bytes.Repeat([]byte{0xAB}, 20)...)
	encoded := encodeChecked(payload)

	decoded, ok := decodeChecked(encoded)
	if !ok {
		t.Fatal("decodeChecked rejected freshly encoded payload")
	}
	if !bytes.Equal(decoded, payload) {
		t.Errorf("round trip mismatch: got %x, want %x", decoded, payload)
	}
}

func flipChar(c byte) string {
	if c == 'r' {
		return "p"
	}
	return "r"
}

func mustEncodeSeed(entropy []byte) string {
	s, err := EncodeSeed(entropy)
	if err != nil {
		panic(err)
	}
	return s
}
