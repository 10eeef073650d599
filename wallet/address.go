// Package wallet links OAuth identities to self-custodied wallet addresses.
// Control of an address is proven by a bearer token issued by a separate
// wallet-authentication system; this package only delegates to it.
package wallet

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// NormalizeAddress returns the EIP-55 checksummed form of an ethereum
// address. Input casing is ignored; malformed input is an error.
func NormalizeAddress(s string) (string, error) {
	if !addressPattern.MatchString(s) {
		return "", fmt.Errorf("invalid wallet address")
	}
	hexPart := []byte(strings.ToLower(s[2:]))

	h := sha3.NewLegacyKeccak256()
	h.Write(hexPart)
	sum := h.Sum(nil)

	for i, c := range hexPart {
		if c < 'a' || c > 'f' {
			continue
		}
		nib := sum[i/2]
		if i%2 == 0 {
			nib >>= 4
		} else {
			nib &= 0x0f
		}
		if nib >= 8 {
			hexPart[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(hexPart), nil
}
