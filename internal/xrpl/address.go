package xrpl

import (
	"crypto/sha256"
	"regexp"

	"github.com/mr-tron/base58"
)

// XRPL uses its own base58 dictionary, not the Bitcoin one.
const xrplAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

var xrplAlphabetObj = base58.NewAlphabet(xrplAlphabet)

// Classic address: 'r' prefix, 24-34 base58 characters.
var addressPattern = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)

// Payload type prefixes.
const (
	accountIDPrefix  = 0x00
	familySeedPrefix = 0x21
)

// IsValidAddress reports whether s is a well-formed classic address:
// pattern match, account-id type prefix, 20-byte payload, and a valid
// double-SHA256 checksum. Subscription requests reject malformed
// addresses wholesale, so every address is validated before subscribing.
func IsValidAddress(s string) bool {
	if !addressPattern.MatchString(s) {
		return false
	}
	payload, ok := decodeChecked(s)
	return ok && len(payload) == 21 && payload[0] == accountIDPrefix
}

// decodeChecked decodes a base58check string with the XRPL alphabet,
// verifying the 4-byte double-SHA256 checksum. Returns the payload
// including the type prefix byte.
func decodeChecked(s string) ([]byte, bool) {
	raw, err := base58.DecodeAlphabet(s, xrplAlphabetObj)
	if err != nil || len(raw) < 5 {
		return nil, false
	}

	payload, checksum := raw[:len(raw)-4], raw[len(raw)-4:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	for i := 0; i < 4; i++ {
		if checksum[i] != second[i] {
			return nil, false
		}
	}
	return payload, true
}

// encodeChecked encodes payload (including type prefix) as base58check
// with the XRPL alphabet.
func encodeChecked(payload []byte) string {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return base58.EncodeAlphabet(append(payload, second[:4]...), xrplAlphabetObj)
}
