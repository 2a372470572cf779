package util

import (
	"github.com/google/uuid"
)

// GenUUID generates a unique id string.
func GenUUID() string {
	return uuid.New().String()
}
