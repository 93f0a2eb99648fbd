package hostcrypt

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/blowfish"
)

// bcryptAlphabet is bcrypt's own base64-style alphabet, distinct from
// itoa64: "./" then uppercase, lowercase, digits.
const bcryptAlphabet = "./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// magicCipherData is "OrpheanBeholderScryDoubt" encoded as three
// 8-byte blocks, the fixed plaintext every bcrypt implementation
// encrypts 64 times per block to produce the hash.
var magicCipherData = []byte{
	0x4f, 0x72, 0x70, 0x68, 0x65, 0x61, 0x6e, 0x42,
	0x65, 0x68, 0x6f, 0x6c, 0x64, 0x65, 0x72, 0x53,
	0x63, 0x72, 0x79, 0x44, 0x6f, 0x75, 0x62, 0x74,
}

var bcryptDecodeMap [256]byte

func init() {
	for i := range bcryptDecodeMap {
		bcryptDecodeMap[i] = 0xff
	}
	for i := 0; i < len(bcryptAlphabet); i++ {
		bcryptDecodeMap[bcryptAlphabet[i]] = byte(i)
	}
}

func bcryptEncode(src []byte) string {
	var sb strings.Builder
	for i := 0; i < len(src); i += 3 {
		var b0, b1, b2 byte
		b0 = src[i]
		if i+1 < len(src) {
			b1 = src[i+1]
		}
		if i+2 < len(src) {
			b2 = src[i+2]
		}
		sb.WriteByte(bcryptAlphabet[b0>>2])
		sb.WriteByte(bcryptAlphabet[((b0&0x3)<<4)|(b1>>4)])
		if i+1 < len(src) {
			sb.WriteByte(bcryptAlphabet[((b1&0xf)<<2)|(b2>>6)])
		}
		if i+2 < len(src) {
			sb.WriteByte(bcryptAlphabet[b2&0x3f])
		}
	}
	return sb.String()
}

func bcryptDecode(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)*3/4+3)
	var buf [4]byte
	n := 0
	for i := 0; i < len(s); i++ {
		v := bcryptDecodeMap[s[i]]
		if v == 0xff {
			return nil, errors.New("hostcrypt: invalid bcrypt salt character")
		}
		buf[n] = v
		n++
		if n == 4 {
			out = append(out, buf[0]<<2|buf[1]>>4, buf[1]<<4|buf[2]>>2, buf[2]<<6|buf[3])
			n = 0
		}
	}
	switch n {
	case 2:
		out = append(out, buf[0]<<2|buf[1]>>4)
	case 3:
		out = append(out, buf[0]<<2|buf[1]>>4, buf[1]<<4|buf[2]>>2)
	}
	return out, nil
}

// bcryptCrypt implements explicit-salt "$2b$" bcrypt, reusing
// golang.org/x/crypto/blowfish's ExpandKeyWithSalt/ExpandKey primitives
// (the EksBlowfish key schedule bcrypt is built on) because the
// golang.org/x/crypto/bcrypt package only hashes against a freshly
// generated random salt, never an attacker-supplied target salt. salt
// is "cost$22-char-salt" as carried by the CrackJob.
func bcryptCrypt(pw, saltField string) (string, error) {
	i := strings.IndexByte(saltField, '$')
	if i < 0 {
		return "", errors.New("hostcrypt: malformed bcrypt salt field")
	}
	costStr, saltStr := saltField[:i], saltField[i+1:]
	cost, err := strconv.Atoi(costStr)
	if err != nil || cost < 4 || cost > 31 {
		return "", errors.New("hostcrypt: invalid bcrypt cost")
	}

	rawSalt, err := bcryptDecode(saltStr)
	if err != nil {
		return "", err
	}
	if len(rawSalt) < 16 {
		return "", errors.New("hostcrypt: bcrypt salt too short")
	}
	rawSalt = rawSalt[:16]

	key := append([]byte(pw), 0)
	if len(key) > 73 {
		key = key[:73]
	}

	c, err := blowfish.NewSaltedCipher(key, rawSalt)
	if err != nil {
		return "", err
	}
	rounds := uint64(1) << uint(cost)
	for r := uint64(0); r < rounds; r++ {
		blowfish.ExpandKey(key, c)
		blowfish.ExpandKey(rawSalt, c)
	}

	cipherText := make([]byte, len(magicCipherData))
	copy(cipherText, magicCipherData)
	for i := 0; i < 24; i += 8 {
		block := cipherText[i : i+8]
		for j := 0; j < 64; j++ {
			c.Encrypt(block, block)
		}
	}

	hash := bcryptEncode(cipherText[:23])
	return "$2b$" + costStr + "$" + saltStr + hash, nil
}
