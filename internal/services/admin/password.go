package admin

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashPassword возвращает bcrypt-хеш пароля для хранения в admins.password_hash.
func hashPassword(raw string) (string, error) {
	const op = "services.admin.hashPassword"
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hash), nil
}

// checkPassword возвращает nil, если пароль соответствует хешу.
func checkPassword(hash, raw string) error {
	const op = "services.admin.checkPassword"
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
