// Package hostcrypt is the host crypto collaborator: a function
// Hash(password, algorithm, salt) -> "$tag$params$digest" covering the
// crypt(3) hash families, plus the digest-suffix extraction the
// cracking pool uses to compare a candidate against a job's target
// hash.
//
// DigestSuffix walks a crypt string with two '$' hops plus a
// one-character skip, which isolates a bare digest for the
// three-segment algorithms (MD5-crypt, SHA-256-crypt, SHA-512-crypt).
// bcrypt and yescrypt carry an extra '$'-delimited segment, so the
// same two-hop rule lands one segment early there; see DESIGN.md for
// the full account.
package hostcrypt

import (
	"errors"
	"strings"
)

// Algorithm identifies a crypt-format hash family. Values double as
// the wire CrackJob.Algorithm byte.
type Algorithm uint8

const (
	MD5      Algorithm = 1
	Bcrypt   Algorithm = 2
	SHA256   Algorithm = 5
	SHA512   Algorithm = 6
	Yescrypt Algorithm = 7
)

func (a Algorithm) String() string {
	switch a {
	case MD5:
		return "MD5"
	case Bcrypt:
		return "bcrypt"
	case SHA256:
		return "SHA-256"
	case SHA512:
		return "SHA-512"
	case Yescrypt:
		return "yescrypt"
	default:
		return "Unknown"
	}
}

// ErrAlgorithmUnavailable is returned by Hash when no implementation
// exists for the requested algorithm. The cracking pool treats this
// like any other hash-primitive failure and skips the candidate, so a
// job using an unavailable algorithm runs to exhaustion and reports
// not-found.
var ErrAlgorithmUnavailable = errors.New("hostcrypt: no collaborator implementation for this algorithm")

// Hash computes the crypt-format hash string for pw under algo, using
// salt exactly as carried by the CrackJob (already including any
// embedded rounds/params segment).
func Hash(pw string, algo Algorithm, salt string) (string, error) {
	switch algo {
	case MD5:
		return md5Crypt(pw, salt), nil
	case SHA256:
		return sha256Crypt(pw, salt), nil
	case SHA512:
		return sha512Crypt(pw, salt), nil
	case Bcrypt:
		return bcryptCrypt(pw, salt)
	case Yescrypt:
		return "", ErrAlgorithmUnavailable
	default:
		return "", ErrAlgorithmUnavailable
	}
}

// DigestSuffix extracts the portion of a crypt-format hash string
// after the second '$' counting from position 1. Returns ok=false if
// fewer than two '$' characters follow the first one.
func DigestSuffix(hash string) (string, bool) {
	if len(hash) == 0 {
		return "", false
	}
	rest := hash[1:]
	i := strings.IndexByte(rest, '$')
	if i < 0 {
		return "", false
	}
	rest = rest[i+1:]
	j := strings.IndexByte(rest, '$')
	if j < 0 {
		return "", false
	}
	suffix := rest[j+1:]
	if len(suffix) == 0 {
		return "", false
	}
	return suffix, true
}
