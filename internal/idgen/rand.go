package idgen

import "crypto/rand"

func cryptoRandBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on a supported platform only fails if the
		// entropy source itself is broken; there is no sane fallback.
		panic("idgen: crypto/rand unavailable: " + err.Error())
	}
	return buf
}
