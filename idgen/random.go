package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateRandomID 生成 length 个字符的随机十六进制串。
func GenerateRandomID(length int) (string, error) {
	b := make([]byte, (length+1)/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b)[:length], nil
}
