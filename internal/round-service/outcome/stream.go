package outcome

import (
	"crypto/sha256"
	"encoding/binary"
	"math/bits"
	"math/rand/v2"
	"strconv"
)

// Stream é a fonte pseudoaleatória determinística de uma rodada.
// Chave: sha256(seed | gameType | sequenceNumber), misturada com splitmix64
// e usada como estado inicial de um PCG (math/rand/v2).
type Stream struct {
	pcg *rand.PCG
}

func NewStream(seed string, gc GameContext) *Stream {
	h := sha256.Sum256([]byte(seed + "|" + gc.GameType + "|" + strconv.FormatInt(gc.SequenceNumber, 10)))
	a := binary.BigEndian.Uint64(h[0:8]) ^ binary.BigEndian.Uint64(h[16:24])
	b := binary.BigEndian.Uint64(h[8:16]) ^ binary.BigEndian.Uint64(h[24:32])
	return &Stream{pcg: rand.NewPCG(splitmix64(a), splitmix64(b^0xDA942042E4DD58B5))}
}

func (s *Stream) Uint64() uint64 { return s.pcg.Uint64() }

// IntN retorna um inteiro em [0,n). n <= 0 retorna 0.
func (s *Stream) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.uint64n(uint64(n)))
}

// Float64 retorna um float em [0,1) com 53 bits de precisão
func (s *Stream) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

// uint64n usa o método de Lemire; implementado aqui para que o resultado
// não dependa de mudanças de algoritmo na stdlib.
func (s *Stream) uint64n(n uint64) uint64 {
	if n&(n-1) == 0 {
		return s.Uint64() & (n - 1)
	}
	hi, lo := bits.Mul64(s.Uint64(), n)
	if lo < n {
		thresh := -n % n
		for lo < thresh {
			hi, lo = bits.Mul64(s.Uint64(), n)
		}
	}
	return hi
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	z := x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
