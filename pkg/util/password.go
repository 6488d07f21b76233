package util

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只处理前 72 字节，更长的密码直接拒绝而不是静默截断
const maxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password longer than 72 bytes")

// PasswordCost 测试里可以调低
var PasswordCost = bcrypt.DefaultCost

func HashPassword(plain string) (string, error) {
	if len(plain) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword 哈希格式错误同样视为不匹配
func CheckPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
