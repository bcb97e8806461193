package outcome

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// NewSeed gera uma seed de servidor com 32 bytes aleatórios (hex)
func NewSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashSeed é o compromisso publicado na abertura da rodada
func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// VerifySeed confere a seed revelada contra o hash publicado
func VerifySeed(seed, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSeed(seed)), []byte(hash)) == 1
}
