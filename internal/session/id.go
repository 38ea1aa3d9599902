package session

import "crypto/rand"

// Session ID prefixes.
const (
	QuoteSessionPrefix = "qs_"
	ChartSessionPrefix = "cs_"
)

const (
	idLength   = 12
	idAlphabet = "abcdefghijklmnopqrstuvwxyz"
	// Largest multiple of 26 below 256; bytes at or above it are
	// rejected so every letter is equally likely.
	idByteLimit = 256 - 256%len(idAlphabet)
)

// GenerateID returns prefix followed by 12 random lowercase letters drawn
// from crypto/rand.
func GenerateID(prefix string) string {
	id := make([]byte, 0, len(prefix)+idLength)
	id = append(id, prefix...)

	var buf [idLength * 2]byte
	for len(id) < len(prefix)+idLength {
		// crypto/rand.Read never returns an error.
		_, _ = rand.Read(buf[:])
		for _, b := range buf {
			if int(b) >= idByteLimit {
				continue
			}
			id = append(id, idAlphabet[int(b)%len(idAlphabet)])
			if len(id) == len(prefix)+idLength {
				break
			}
		}
	}
	return string(id)
}
