package auth

import "golang.org/x/crypto/bcrypt"

// Passwords are stored as bcrypt hashes. bcrypt's comparison is
// constant-time, which also closes the timing side channel the old
// plaintext comparison had.

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
