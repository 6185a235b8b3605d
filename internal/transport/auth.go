package transport

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ChallengeSize is the length in bytes of the random challenge a server
// sends in Hello.
const ChallengeSize = 32

// GenerateChallenge returns a fresh random challenge for a Hello message.
func GenerateChallenge() ([]byte, error) {
	b := make([]byte, ChallengeSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("transport: generate challenge: %w", err)
	}
	return b, nil
}

// ComputeResponse hashes token and challenge together using blake2b-256,
// the response a client includes in Authenticate.
func ComputeResponse(token string, challenge []byte) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("transport: new blake2b hash: %w", err)
	}
	h.Write([]byte(token))
	h.Write(challenge)
	return h.Sum(nil), nil
}

// VerifyResponse reports whether response is the correct ComputeResponse
// for token and challenge, using a constant-time comparison.
func VerifyResponse(token string, challenge, response []byte) (bool, error) {
	want, err := ComputeResponse(token, challenge)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(want, response) == 1, nil
}

// TokenAccepted reports whether token is present in accepted.
func TokenAccepted(token string, accepted []string) bool {
	for _, t := range accepted {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return true
		}
	}
	return false
}
