package xrpl

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
)

// Wallet holds the issuer's signing keys. One wallet per process,
// explicitly constructed and passed to the components that submit
// transactions.
type Wallet struct {
	// Address is the issuer's classic address.
	Address string

	priv ed25519.PrivateKey
	pub  []byte
}

// NewWalletFromSeed decodes a base58check family seed ("s..." form) and
// derives the ed25519 keypair. The seed entropy is hashed to the raw
// private scalar; the public key is recovered from the scalar by
// base-point multiplication.
func NewWalletFromSeed(address, seed string) (*Wallet, error) {
	if !IsValidAddress(address) {
		return nil, fmt.Errorf("invalid issuer address %q", address)
	}
	if !strings.HasPrefix(seed, "s") {
		return nil, fmt.Errorf("family seed must start with 's'")
	}

	payload, ok := decodeChecked(seed)
	if !ok || len(payload) != 17 || payload[0] != familySeedPrefix {
		return nil, fmt.Errorf("malformed family seed")
	}
	entropy := payload[1:]

	// Raw ed25519 seed = SHA512Half(entropy).
	digest := sha512.Sum512(entropy)
	rawSeed := digest[:32]

	// Derive the public key explicitly to confirm the scalar is usable.
	expanded := sha512.Sum512(rawSeed)
	scalar, err := new(edwards25519.Scalar).SetBytesWithClamping(expanded[:32])
	if err != nil {
		return nil, fmt.Errorf("derive private scalar: %w", err)
	}
	point := new(edwards25519.Point).ScalarBaseMult(scalar)

	priv := ed25519.NewKeyFromSeed(rawSeed)

	return &Wallet{
		Address: address,
		priv:    priv,
		pub:     point.Bytes(),
	}, nil
}

// PublicKeyHex returns the hex-encoded ed25519 public key with the
// 0xED ed25519 marker prefix used on the ledger.
func (w *Wallet) PublicKeyHex() string {
	return strings.ToUpper(hex.EncodeToString(append([]byte{0xED}, w.pub...)))
}

// Sign signs payload and returns the hex-encoded signature.
func (w *Wallet) Sign(payload []byte) string {
	sig := ed25519.Sign(w.priv, payload)
	return strings.ToUpper(hex.EncodeToString(sig))
}

// Verify checks a hex-encoded signature against payload. Used by tests
// and by the submitter's pre-submission self-check.
func (w *Wallet) Verify(payload []byte, sigHex string) bool {
	sig, err := hex.DecodeString(strings.ToLower(sigHex))
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(w.pub), payload, sig)
}

// EncodeSeed encodes 16 bytes of entropy as a base58check family seed.
// Test helper for constructing deterministic wallets.
func EncodeSeed(entropy []byte) (string, error) {
	if len(entropy) != 16 {
		return "", fmt.Errorf("family seed entropy must be 16 bytes, got %d", len(entropy))
	}
	return encodeChecked(append([]byte{familySeedPrefix}, entropy...)), nil
}
