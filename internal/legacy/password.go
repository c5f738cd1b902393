package legacy

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// VerifyPassword compares a supplied password against the value stored
// in the legacy directory. Stores that hash with bcrypt keep working;
// plaintext stores are compared in constant time.
func VerifyPassword(stored string, supplied string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword(
			[]byte(stored),
			[]byte(supplied),
		) == nil
	}

	return subtle.ConstantTimeCompare(
		[]byte(stored),
		[]byte(supplied),
	) == 1
}
