package rooms

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/desertthunder/cosmic/internal/models"
)

// DefaultCodeLength is the number of characters in a room code.
const DefaultCodeLength = 6

// NewCode draws length characters uniformly from [models.CodeAlphabet] using r, or crypto/rand when
// r is nil.
func NewCode(r io.Reader, length int) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	if length <= 0 {
		length = DefaultCodeLength
	}

	n := big.NewInt(int64(len(models.CodeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		idx, err := rand.Int(r, n)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		code[i] = models.CodeAlphabet[idx.Int64()]
	}
	return string(code), nil
}
