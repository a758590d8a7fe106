package utils

import (
	"crypto/rand"
	"fmt"
)

const inviteCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateInviteCode generates a random invite code of the given length.
func GenerateInviteCode(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	for i, b := range bytes {
		bytes[i] = inviteCodeCharset[int(b)%len(inviteCodeCharset)]
	}
	return string(bytes), nil
}
