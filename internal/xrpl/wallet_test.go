package xrpl

import (
	"strings"
	"testing"
)

func TestNewWalletFromSeed(t *testing.T) {
	addr := testAddress(0x11)
	seed := mustEncodeSeed([]byte("0123456789abcdef"))

	w, err := NewWalletFromSeed(addr, seed)
	if err != nil {
		t.Fatalf("NewWalletFromSeed: %v", err)
	}
	if w.Address != addr {
		t.Errorf("address = %q, want %q", w.Address, addr)
	}

	pub := w.PublicKeyHex()
	if !strings.HasPrefix(pub, "ED") {
		t.Errorf("public key should carry the ED prefix, got %q", pub)
	}
	if len(pub) != 66 {
		t.Errorf("public key hex length = %d, want 66", len(pub))
	}
}

func TestNewWalletFromSeed_Deterministic(t *testing.T) {
	addr := testAddress(0x22)
	seed := mustEncodeSeed([]byte("fedcba9876543210"))

	w1, err := NewWalletFromSeed(addr, seed)
	if err != nil {
		t.Fatalf("first derivation: %v", err)
	}
	w2, err := NewWalletFromSeed(addr, seed)
	if err != nil {
		t.Fatalf("second derivation: %v", err)
	}
	if w1.PublicKeyHex() != w2.PublicKeyHex() {
		t.Error("same seed derived different public keys")
	}
}

func TestNewWalletFromSeed_Rejects(t *testing.T) {
	addr := testAddress(0x33)
	seed := mustEncodeSeed([]byte("0123456789abcdef"))

	if _, err := NewWalletFromSeed("not-an-address", seed); err == nil {
		t.Error("expected error for bad address")
	}
	if _, err := NewWalletFromSeed(addr, "not-a-seed"); err == nil {
		t.Error("expected error for bad seed")
	}
	// An address is valid base58check but carries the wrong type prefix.
	if _, err := NewWalletFromSeed(addr, addr); err == nil {
		t.Error("expected error for address used as seed")
	}
}

func TestWallet_SignVerify(t *testing.T) {
	addr := testAddress(0x44)
	seed := mustEncodeSeed([]byte("sign-verify-seed"))

	w, err := NewWalletFromSeed(addr, seed)
	if err != nil {
		t.Fatalf("NewWalletFromSeed: %v", err)
	}

	payload := []byte(`{"TransactionType":"Payment"}`)
	sig := w.Sign(payload)

	if !w.Verify(payload, sig) {
		t.Error("signature did not verify")
	}
	if w.Verify([]byte("tampered"), sig) {
		t.Error("signature verified against tampered payload")
	}
	if w.Verify(payload, "ZZ") {
		t.Error("garbage signature verified")
	}
}
