package hostcrypt

import "crypto/md5"

// md5Crypt implements the classic "$1$" password hash (Poul-Henning
// Kamp's FreeBSD md5crypt). salt is the raw salt string carried by the
// CrackJob, with no "$1$" prefix and no trailing "$"; the rendered
// hash adds that framing itself.
func md5Crypt(pw, salt string) string {
	pwb := []byte(pw)
	saltb := []byte(salt)

	altCtx := md5.New()
	altCtx.Write(pwb)
	altCtx.Write(saltb)
	altCtx.Write(pwb)
	alt := altCtx.Sum(nil)

	ctx := md5.New()
	ctx.Write(pwb)
	ctx.Write([]byte("$1$"))
	ctx.Write(saltb)

	for pl := len(pwb); pl > 0; pl -= 16 {
		n := pl
		if n > 16 {
			n = 16
		}
		ctx.Write(alt[:n])
	}

	for i := len(pwb); i != 0; i >>= 1 {
		if i&1 != 0 {
			ctx.Write([]byte{0})
		} else {
			ctx.Write(pwb[:1])
		}
	}
	final := ctx.Sum(nil)

	for i := 0; i < 1000; i++ {
		round := md5.New()
		if i&1 != 0 {
			round.Write(pwb)
		} else {
			round.Write(final)
		}
		if i%3 != 0 {
			round.Write(saltb)
		}
		if i%7 != 0 {
			round.Write(pwb)
		}
		if i&1 != 0 {
			round.Write(final)
		} else {
			round.Write(pwb)
		}
		final = round.Sum(nil)
	}

	out := make([]byte, 0, 22)
	out = append(out, encode24(final[0], final[6], final[12], 4)...)
	out = append(out, encode24(final[1], final[7], final[13], 4)...)
	out = append(out, encode24(final[2], final[8], final[14], 4)...)
	out = append(out, encode24(final[3], final[9], final[15], 4)...)
	out = append(out, encode24(final[4], final[10], final[5], 4)...)
	out = append(out, encode24(0, 0, final[11], 2)...)

	return "$1$" + salt + "$" + string(out)
}
