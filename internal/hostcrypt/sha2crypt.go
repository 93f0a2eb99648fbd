package hostcrypt

import (
	"crypto/sha512"
	"hash"
	"strconv"
	"strings"

	sha256simd "github.com/minio/sha256-simd"
)

// SHA-crypt rounds bounds, per the Drepper specification every "$5$"/
// "$6$" implementation (glibc included) enforces.
const (
	defaultRounds = 5000
	minRounds     = 1000
	maxRounds     = 999999999
)

// parseSHACryptSalt splits an optional "rounds=N$" prefix off the raw
// salt carried by a CrackJob, the same shape crypt(3) accepts for
// "$5$"/"$6$". roundsSpecified tracks whether the prefix should be
// echoed back into the rendered hash string.
func parseSHACryptSalt(salt string) (rounds int, roundsSpecified bool, rest string) {
	const prefix = "rounds="
	if strings.HasPrefix(salt, prefix) {
		if i := strings.IndexByte(salt, '$'); i >= 0 {
			if n, err := strconv.Atoi(salt[len(prefix):i]); err == nil {
				rounds = n
				roundsSpecified = true
				rest = salt[i+1:]
				if rounds < minRounds {
					rounds = minRounds
				} else if rounds > maxRounds {
					rounds = maxRounds
				}
				return rounds, roundsSpecified, rest
			}
		}
	}
	return defaultRounds, false, salt
}

// shaCrypt is the shared Drepper SHA-256-crypt/SHA-512-crypt algorithm;
// newHash constructs a fresh digest (sha256simd.New or sha512.New) and
// blockSize is its digest size (32 or 64).
func shaCrypt(pw, saltField string, newHash func() hash.Hash, blockSize int, permute func([]byte) []byte) string {
	rounds, roundsSpecified, salt := parseSHACryptSalt(saltField)
	// SHA-crypt uses at most the first 16 salt characters.
	if len(salt) > 16 {
		salt = salt[:16]
	}
	pwb := []byte(pw)
	saltb := []byte(salt)

	altCtx := newHash()
	altCtx.Write(pwb)
	altCtx.Write(saltb)
	altCtx.Write(pwb)
	alt := altCtx.Sum(nil)

	ctx := newHash()
	ctx.Write(pwb)
	ctx.Write(saltb)
	for cnt := len(pwb); cnt > 0; cnt -= blockSize {
		n := cnt
		if n > blockSize {
			n = blockSize
		}
		ctx.Write(alt[:n])
	}
	for cnt := len(pwb); cnt != 0; cnt >>= 1 {
		if cnt&1 != 0 {
			ctx.Write(alt)
		} else {
			ctx.Write(pwb)
		}
	}
	a := ctx.Sum(nil)

	pCtx := newHash()
	for i := 0; i < len(pwb); i++ {
		pCtx.Write(pwb)
	}
	pTemp := pCtx.Sum(nil)
	pBytes := cyclicBytes(pTemp, len(pwb))

	sCtx := newHash()
	for i := 0; i < 16+int(a[0]); i++ {
		sCtx.Write(saltb)
	}
	sTemp := sCtx.Sum(nil)
	sBytes := cyclicBytes(sTemp, len(saltb))

	for r := 0; r < rounds; r++ {
		rc := newHash()
		if r&1 != 0 {
			rc.Write(pBytes)
		} else {
			rc.Write(a)
		}
		if r%3 != 0 {
			rc.Write(sBytes)
		}
		if r%7 != 0 {
			rc.Write(pBytes)
		}
		if r&1 != 0 {
			rc.Write(a)
		} else {
			rc.Write(pBytes)
		}
		a = rc.Sum(nil)
	}

	encoded := permute(a)

	tag := "5"
	if blockSize == 64 {
		tag = "6"
	}
	out := "$" + tag + "$"
	if roundsSpecified {
		out += "rounds=" + strconv.Itoa(rounds) + "$"
	}
	return out + salt + "$" + string(encoded)
}

// cyclicBytes produces an n-byte sequence by repeating src end-to-end,
// the "P"/"S" byte-sequence construction step of SHA-crypt.
func cyclicBytes(src []byte, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = src[i%len(src)]
	}
	return out
}

// permuteSHA256 is the fixed byte-index transposition the SHA-crypt
// specification defines for packing a 32-byte digest into 43 itoa64
// characters.
func permuteSHA256(a []byte) []byte {
	out := make([]byte, 0, 43)
	out = append(out, encode24(a[0], a[10], a[20], 4)...)
	out = append(out, encode24(a[21], a[1], a[11], 4)...)
	out = append(out, encode24(a[12], a[22], a[2], 4)...)
	out = append(out, encode24(a[3], a[13], a[23], 4)...)
	out = append(out, encode24(a[24], a[4], a[14], 4)...)
	out = append(out, encode24(a[15], a[25], a[5], 4)...)
	out = append(out, encode24(a[6], a[16], a[26], 4)...)
	out = append(out, encode24(a[27], a[7], a[17], 4)...)
	out = append(out, encode24(a[18], a[28], a[8], 4)...)
	out = append(out, encode24(a[9], a[19], a[29], 4)...)
	out = append(out, encode24(0, a[31], a[30], 3)...)
	return out
}

// permuteSHA512 is the equivalent transposition for the 64-byte
// SHA-512-crypt digest, packed into 86 itoa64 characters.
func permuteSHA512(a []byte) []byte {
	idx := [21][3]int{
		{0, 21, 42}, {22, 43, 1}, {44, 2, 23}, {3, 24, 45}, {25, 46, 4},
		{47, 5, 26}, {6, 27, 48}, {28, 49, 7}, {50, 8, 29}, {9, 30, 51},
		{31, 52, 10}, {53, 11, 32}, {12, 33, 54}, {34, 55, 13}, {56, 14, 35},
		{15, 36, 57}, {37, 58, 16}, {59, 17, 38}, {18, 39, 60}, {40, 61, 19},
		{62, 20, 41},
	}
	out := make([]byte, 0, 86)
	for _, t := range idx {
		out = append(out, encode24(a[t[0]], a[t[1]], a[t[2]], 4)...)
	}
	out = append(out, encode24(0, 0, a[63], 2)...)
	return out
}

// sha256Crypt computes the "$5$" crypt-format hash.
func sha256Crypt(pw, salt string) string {
	return shaCrypt(pw, salt, func() hash.Hash { return sha256simd.New() }, 32, permuteSHA256)
}

// sha512Crypt computes the "$6$" crypt-format hash.
func sha512Crypt(pw, salt string) string {
	return shaCrypt(pw, salt, func() hash.Hash { return sha512.New() }, 64, permuteSHA512)
}
