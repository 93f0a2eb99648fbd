// Package enumerate implements the bijection between a 64-bit global
// candidate index and a printable-ASCII password of length 1-4: length
// buckets ordered shortest first, then a most-significant-digit-first
// base-79 decomposition within each bucket. The mapping is stable, so
// two workers can independently crack disjoint index ranges without
// exchanging any candidate data.
package enumerate

import "fmt"

const (
	// CharMin and CharMax bound the printable-ASCII alphabet used for
	// every candidate character.
	CharMin = 33
	CharMax = 111

	// CharRange is the number of distinct characters in the alphabet (79).
	CharRange = CharMax - CharMin + 1

	// MaxLength is the longest candidate password this space enumerates.
	MaxLength = 4
)

// Offset of the first index belonging to each length bucket.
const (
	Off1 = uint64(0)
	Off2 = uint64(CharRange)
	Off3 = Off2 + uint64(CharRange)*uint64(CharRange)
	Off4 = Off3 + uint64(CharRange)*uint64(CharRange)*uint64(CharRange)

	// Total is the size of the whole search space: 79 + 79^2 + 79^3 + 79^4.
	Total = Off4 + uint64(CharRange)*uint64(CharRange)*uint64(CharRange)*uint64(CharRange)
)

// IndexToPassword maps a global candidate index in [0, Total) to its
// printable-ASCII password. It is a partial function: indexes outside
// [0, Total) are rejected with an error rather than silently wrapping.
func IndexToPassword(idx uint64) (string, error) {
	if idx >= Total {
		return "", fmt.Errorf("enumerate: index %d out of range [0,%d)", idx, Total)
	}

	switch {
	case idx < Off2:
		return string([]byte{digit(idx)}), nil

	case idx < Off3:
		i := idx - Off2
		b := [2]byte{}
		b[1] = digit(i % CharRange)
		i /= CharRange
		b[0] = digit(i)
		return string(b[:]), nil

	case idx < Off4:
		i := idx - Off3
		b := [3]byte{}
		b[2] = digit(i % CharRange)
		i /= CharRange
		b[1] = digit(i % CharRange)
		i /= CharRange
		b[0] = digit(i)
		return string(b[:]), nil

	default:
		i := idx - Off4
		b := [4]byte{}
		b[3] = digit(i % CharRange)
		i /= CharRange
		b[2] = digit(i % CharRange)
		i /= CharRange
		b[1] = digit(i % CharRange)
		i /= CharRange
		b[0] = digit(i)
		return string(b[:]), nil
	}
}

// digit maps a base-79 digit (0..78) to its alphabet character code.
func digit(d uint64) byte {
	return byte(CharMin + d)
}

// PasswordToIndex is the inverse of IndexToPassword. It rejects any
// password outside the 1..4-character, 33..111 alphabet.
func PasswordToIndex(pw string) (uint64, error) {
	n := len(pw)
	if n < 1 || n > MaxLength {
		return 0, fmt.Errorf("enumerate: password length %d out of range [1,%d]", n, MaxLength)
	}

	var base uint64
	switch n {
	case 1:
		base = Off1
	case 2:
		base = Off2
	case 3:
		base = Off3
	case 4:
		base = Off4
	}

	var rem uint64
	for _, c := range []byte(pw) {
		if c < CharMin || c > CharMax {
			return 0, fmt.Errorf("enumerate: character %q out of alphabet range [%d,%d]", c, CharMin, CharMax)
		}
		rem = rem*CharRange + uint64(c-CharMin)
	}
	return base + rem, nil
}
