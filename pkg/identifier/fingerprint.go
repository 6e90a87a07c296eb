package identifier

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// FingerprintLen is the number of digest bytes kept in a Fingerprint.
const FingerprintLen = 6

// Fingerprint returns a short BLAKE2b-256 digest of the identifier, hex
// encoded. Logs and event notifications carry the fingerprint so raw card
// serials stay on the device display only.
func (id Identifier) Fingerprint() string {
	if id.n == 0 {
		return ""
	}
	sum := blake2b.Sum256(id.b[:id.n])
	return hex.EncodeToString(sum[:FingerprintLen])
}
