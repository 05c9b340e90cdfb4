package randstr

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// DefaultAlphabet is the 63-character alphabet used for party and user ids.
const DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_"

const (
	PartyIDLength = 6
	UserIDLength  = 12
)

type Generator struct {
	alphabet []byte
	max      *big.Int
	source   io.Reader
}

func New(alphabet []byte) *Generator {
	return &Generator{
		alphabet: alphabet,
		max:      big.NewInt(int64(len(alphabet))),
		source:   rand.Reader,
	}
}

// GenerateRandomString returns length characters drawn uniformly from the alphabet.
func (g *Generator) GenerateRandomString(length int) (string, error) {
	if length <= 0 || len(g.alphabet) == 0 {
		return "", nil
	}

	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(g.source, g.max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		b[i] = g.alphabet[n.Int64()]
	}

	return string(b), nil
}
