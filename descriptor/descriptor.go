// Package descriptor implements packed binary feature descriptors and their
// Hamming distance.
package descriptor

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/steakknife/hamming"
)

// Mode selects the descriptor width produced by the detector.
type Mode int

const (
	// Full keeps every ordinal comparison of the sampling pattern.
	Full Mode = iota
	// Compact keeps a fixed subset of 64 comparisons packed into two words.
	Compact
	// Signature folds the compact descriptor into a single word.
	Signature
)

func (m Mode) String() string {
	switch m {
	case Full:
		return "full"
	case Compact:
		return "compact"
	case Signature:
		return "signature"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case Full, Compact, Signature:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts the names
// returned by String.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "full":
		*m = Full
	case "compact":
		*m = Compact
	case "signature":
		*m = Signature
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, text)
	}
	return nil
}

// ErrUnknownMode is returned when a descriptor mode name or value is not recognized.
var ErrUnknownMode = errors.New("unknown descriptor mode")

// CompactBits is the number of comparisons kept by Compact.
const CompactBits = 64

// compactSeed fixes the pair subsample; changing it invalidates every compiled target.
const compactSeed = 0x6d696e64

// Descriptor is a packed bit vector, least significant bit first within each word.
type Descriptor []uint32

// Words returns the number of uint32 words needed for n bits.
func Words(n int) int {
	return (n + 31) / 32
}

// Bit reports whether bit i is set.
func (d Descriptor) Bit(i int) bool {
	return d[i>>5]&(1<<(uint(i)&31)) != 0
}

// Set sets bit i.
func (d Descriptor) Set(i int) {
	d[i>>5] |= 1 << (uint(i) & 31)
}

// Distance returns the Hamming distance between a and b. Descriptors of
// different widths are compared over the shorter one.
func Distance(a, b Descriptor) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		d += hamming.CountBitsUint32(a[i] ^ b[i])
	}
	return d
}

// CompactPairs returns the fixed indexes of the comparisons kept by Compact,
// drawn from a pattern of total comparisons.
func CompactPairs(total int) []int {
	//nolint:gosec
	rng := rand.New(rand.NewSource(compactSeed))
	perm := rng.Perm(total)
	n := CompactBits
	if total < n {
		n = total
	}
	out := make([]int, n)
	copy(out, perm[:n])
	return out
}

// Compacted gathers the selected bits of full into a two-word descriptor.
func Compacted(full Descriptor, pairs []int) Descriptor {
	out := make(Descriptor, Words(CompactBits))
	for i, p := range pairs {
		if full.Bit(p) {
			out.Set(i)
		}
	}
	return out
}

// Fold XORs the two halves of a compact descriptor into one 32-bit signature.
func Fold(compact Descriptor) Descriptor {
	if len(compact) < 2 {
		out := make(Descriptor, 1)
		copy(out, compact)
		return out
	}
	return Descriptor{compact[0] ^ compact[1]}
}

// Bits returns the nominal bit width of descriptors in mode m for a
// pattern of total comparisons.
func (m Mode) Bits(total int) int {
	switch m {
	case Compact:
		return CompactBits
	case Signature:
		return 32
	default:
		return total
	}
}
