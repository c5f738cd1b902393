package zitadel

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	passwordLength = 8

	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits    = "0123456789"
	symbols   = "!@#$%^&*()-_=+"
)

// InitialPassword generates the throwaway credential for a freshly
// provisioned user: one character from each class, the rest uniform
// over the combined alphabet, order shuffled. It is never shown to
// anyone; it only satisfies the platform's non-empty-credential rule
// until the legacy password is installed.
func InitialPassword() (string, error) {

	combined := lowercase + uppercase + digits + symbols

	chars := make([]byte, 0, passwordLength)

	for _, alphabet := range []string{lowercase, uppercase, digits, symbols} {
		ch, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		chars = append(chars, ch)
	}

	for len(chars) < passwordLength {
		ch, err := randomChar(combined)
		if err != nil {
			return "", err
		}
		chars = append(chars, ch)
	}

	// Fisher-Yates so the class-guaranteed characters are not
	// predictably positioned.
	for i := len(chars) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("zitadel: failed to generate password: %w", err)
		}
		chars[i], chars[j.Int64()] = chars[j.Int64()], chars[i]
	}

	return string(chars), nil
}

func randomChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("zitadel: failed to generate password: %w", err)
	}
	return alphabet[n.Int64()], nil
}
