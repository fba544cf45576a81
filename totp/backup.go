package totp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// Unambiguous alphabet: no 0/O, 1/I/L, 8/B lookalikes.
const backupAlphabet = "ACDEFGHJKMNPQRTVWXYZ234679"

func newBackupCodes(count, length int) ([]string, error) {
	codes := make([]string, count)
	buf := make([]byte, length)
	for i := range codes {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		b := make([]byte, length)
		for j, v := range buf {
			b[j] = backupAlphabet[int(v)%len(backupAlphabet)]
		}
		codes[i] = string(b)
	}
	return codes, nil
}

func hashBackupCode(code string) [32]byte {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	return sha256.Sum256([]byte(normalized))
}

func hashBackupCodes(codes []string) [][32]byte {
	hashes := make([][32]byte, len(codes))
	for i, code := range codes {
		hashes[i] = hashBackupCode(code)
	}
	return hashes
}

// consumeBackupCode matches code against the credential's backup set in
// constant time over the full set, removes the match, and returns how
// many codes remain. The full scan runs even after a hit so timing does
// not reveal the match position.
func consumeBackupCode(cred *Credential, code string) (remaining int, ok bool) {
	given := hashBackupCode(code)

	matched := -1
	for i := range cred.BackupHashes {
		if subtle.ConstantTimeCompare(given[:], cred.BackupHashes[i][:]) == 1 && matched < 0 {
			matched = i
		}
	}
	if matched < 0 {
		return len(cred.BackupHashes), false
	}

	cred.BackupHashes = append(cred.BackupHashes[:matched], cred.BackupHashes[matched+1:]...)
	return len(cred.BackupHashes), true
}

func looksLikeBackupCode(code string, length int) bool {
	return len(strings.TrimSpace(code)) == length
}
