package signaling

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/brianvoe/gofakeit/v7"
)

const fallbackName = "Peer"

// randomName picks an animal display name for peers that connect without
// one, capitalised the way clients show names.
func randomName() string {
	name := strings.TrimSpace(gofakeit.Animal())
	if name == "" {
		return fallbackName
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}
