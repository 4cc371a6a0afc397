package utils

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

func RandomHexString(n int) (string, error) {
	bytes := make([]byte, n)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func RandomHexStringMust(n int) string {
	s, err := RandomHexString(n)
	if err != nil {
		panic(err)
	}
	return s
}

func NewUUIDv4() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
