// Package hashutil provides the checksums used for artifacts and the hash command.
package hashutil

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names accepted by Sum
const (
	AlgoDJB2   = "djb2"
	AlgoCRC32  = "crc32"
	AlgoSHA256 = "sha256"
	AlgoBLAKE3 = "blake3"
)

// Algorithms lists the supported names in display order
var Algorithms = []string{AlgoDJB2, AlgoCRC32, AlgoSHA256, AlgoBLAKE3}

// djb2 implements hash.Hash64 for Bernstein's string hash
type djb2 struct {
	sum uint64
}

// NewDJB2 returns a djb2 hasher seeded with 5381
func NewDJB2() hash.Hash64 {
	return &djb2{sum: 5381}
}

func (d *djb2) Write(p []byte) (int, error) {
	for _, c := range p {
		d.sum = d.sum*33 + uint64(c)
	}
	return len(p), nil
}

func (d *djb2) Sum(b []byte) []byte {
	s := d.sum
	return append(b, byte(s>>56), byte(s>>48), byte(s>>40), byte(s>>32), byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *djb2) Sum64() uint64  { return d.sum }
func (d *djb2) Reset()         { d.sum = 5381 }
func (d *djb2) Size() int      { return 8 }
func (d *djb2) BlockSize() int { return 1 }

// DJB2 hashes b
func DJB2(b []byte) uint64 {
	h := NewDJB2()
	_, _ = h.Write(b)
	return h.Sum64()
}

// DJB2File streams path through djb2
func DJB2File(path string) (uint64, error) {
	h := NewDJB2()
	if err := hashFile(path, h); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// CRC32 is the IEEE checksum of b
func CRC32(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

func newHash(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case AlgoDJB2:
		return NewDJB2(), nil
	case AlgoCRC32:
		return crc32.NewIEEE(), nil
	case AlgoSHA256:
		return sha256.New(), nil
	case AlgoBLAKE3:
		return blake3.New(), nil
	}
	return nil, fmt.Errorf("unknown hash algorithm %q (want one of %s)", algo, strings.Join(Algorithms, ", "))
}

// Sum hashes r with algo and returns the hex digest
func Sum(algo string, r io.Reader) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, bufio.NewReader(r)); err != nil {
		return "", fmt.Errorf("failed to hash input: %w", err)
	}
	if d, ok := h.(*djb2); ok {
		return fmt.Sprintf("%#x", d.Sum64()), nil
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumString hashes s
func SumString(algo, s string) (string, error) {
	return Sum(algo, strings.NewReader(s))
}

// SumFile hashes the file at path
func SumFile(algo, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Sum(algo, f)
}

func hashFile(path string, h hash.Hash) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
