package sia

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
)

// DecryptFrame decrypts the bracketed payload segment of an encrypted frame
// with AES-128-CBC. Per the DC-09 convention the 16 key bytes are reused as
// the IV. On any error the original bytes are returned unchanged so the
// codec can attempt a plaintext parse: some panels send mixed encrypted and
// plaintext streams on the same connection.
func DecryptFrame(raw []byte, key string) []byte {
	open := bytes.IndexByte(raw, '[')
	end := bytes.LastIndexByte(raw, ']')
	if open < 0 || end <= open {
		return raw
	}

	ct, err := hex.DecodeString(string(raw[open+1 : end]))
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return raw
	}

	k := normalizeKey(key)
	block, err := aes.NewCipher(k)
	if err != nil {
		return raw
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, k).CryptBlocks(pt, ct)
	pt = bytes.TrimRight(pt, "\x00")

	out := make([]byte, 0, open+1+len(pt)+len(raw)-end)
	out = append(out, raw[:open+1]...)
	out = append(out, pt...)
	out = append(out, raw[end:]...)
	return out
}

// normalizeKey turns the configured key into exactly 16 AES key bytes. An
// even-length hex string of up to 32 chars is hex-decoded, anything else is
// taken as ASCII; the result is zero-padded or truncated to 16 bytes.
func normalizeKey(key string) []byte {
	var b []byte
	if len(key) <= 32 && len(key)%2 == 0 && isHex(key) {
		b, _ = hex.DecodeString(key)
	} else {
		b = []byte(key)
	}
	out := make([]byte, 16)
	copy(out, b)
	return out
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
