package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Digest returns the hex SHA-256 of a high-entropy secret (refresh token, OTP).
// Low-entropy secrets such as passwords and security answers go through Hasher instead.
func Digest(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// DigestEqual reports whether secret hashes to storedDigest, in constant time.
func DigestEqual(secret, storedDigest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(secret)), []byte(storedDigest)) == 1
}

// DeviceDigest is the form a device id takes in audit rows, logs and telemetry. The raw
// id carries the device's verification flag and stays in the cookie and the flag store.
// An empty id stays empty.
func DeviceDigest(deviceID string) string {
	if deviceID == "" {
		return ""
	}
	return Digest(deviceID)
}
