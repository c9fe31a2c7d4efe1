package d2

import (
	"crypto/md5"
	"encoding/hex"
)

// ContentHash returns the lowercase hex MD5 digest of a diagram's source.
// It identifies rendered diagrams in the page (data-d2-hash) and names
// temp files; it is not used for anything security sensitive.
func ContentHash(source []byte) string {
	sum := md5.Sum(source)
	return hex.EncodeToString(sum[:])
}
