package certificate

import (
	"crypto/rand"
	"math/big"
)

// CodeLength is the number of characters in a verification code.
const CodeLength = 9

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewVerificationCode returns a random uppercase alphanumeric code. Codes are
// not checked for collisions; they are advisory and never used as keys.
func NewVerificationCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
