package utils

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	// bcrypt 只使用前 72 字节
	maxPasswordBytes = 72
)

var ErrWeakPassword = errors.New("密码长度需在 6 个字符到 72 字节之间")

// CheckPassword 校验密码长度
func CheckPassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength || len(password) > maxPasswordBytes {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword 校验后使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	if err := CheckPassword(password); err != nil {
		return "", err
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
