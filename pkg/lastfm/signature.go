package lastfm

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// unsignedParams are sent with a request but never part of api_sig.
var unsignedParams = map[string]bool{
	"format":   true,
	"callback": true,
	"api_sig":  true,
}

// calculateSignature generates an MD5 signature for Last.fm API requests.
//
// The signature is calculated by:
// 1. Sorting parameter keys alphabetically
// 2. Concatenating key+value pairs (e.g., "keyAvalueAkeyBvalueB")
// 3. Appending the API secret
// 4. Taking the MD5 hash of the result
//
// The format and callback parameters are excluded, as Last.fm requires.
func calculateSignature(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if unsignedParams[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sigPlain strings.Builder
	for _, k := range keys {
		sigPlain.WriteString(k)
		sigPlain.WriteString(params[k])
	}
	sigPlain.WriteString(secret)

	sum := md5.Sum([]byte(sigPlain.String()))
	return hex.EncodeToString(sum[:])
}
