package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateFlag produces a random flag in the conventional FLAG{...} format,
// used by admins who don't want to invent one by hand.
func GenerateFlag() string {
	part1 := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	part2 := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return fmt.Sprintf("FLAG{%s-%s}", part1, part2)
}
