package usertoken

const keySize = 32

// deriveKey maps a configured secret onto a 32 byte AES-256 key. Secrets of
// 32 bytes or more are truncated; shorter secrets are repeated cyclically to
// fill the key. This is a fixed byte-layout transform, not a KDF, and the
// exact layout must not change: tokens issued under the old layout become
// undecodable if it does.
func deriveKey(secret string) []byte {
	b := []byte(secret)
	key := make([]byte, keySize)
	for i := range key {
		key[i] = b[i%len(b)]
	}
	return key
}
