package config

import (
	"fmt"
	"log"
)

const minSecretLen = 32

func MustNonEmpty(value, envName string) string {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
	return value
}

// RequireSecret rejects HMAC secrets too short to be worth signing with.
func RequireSecret(value []byte, envName string) error {
	if len(value) == 0 {
		return fmt.Errorf("missing required env %s", envName)
	}
	if len(value) < minSecretLen {
		return fmt.Errorf("env %s must be at least %d bytes", envName, minSecretLen)
	}
	return nil
}
