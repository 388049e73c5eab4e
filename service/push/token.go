package push

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// DecodeToken decrypts a stored FCM registration token. Tokens are persisted
// as "hexIV:hexCiphertext", AES-256-CBC with PKCS7 padding; the key is the
// shared secret padded or truncated to 32 bytes.
func DecodeToken(enc, secret string) (string, error) {
	parts := strings.SplitN(enc, ":", 2)
	if len(parts) != 2 {
		return "", errors.New("malformed encrypted token")
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", errors.Wrap(err, "decode token iv")
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", errors.Wrap(err, "decode token ciphertext")
	}
	if len(iv) != aes.BlockSize {
		return "", errors.Errorf("bad iv length %d", len(iv))
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", errors.Errorf("bad ciphertext length %d", len(ct))
	}

	key := make([]byte, 32)
	copy(key, secret)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, "token cipher")
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	pad := int(pt[len(pt)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(pt) {
		return "", errors.New("bad token padding")
	}
	return string(pt[:len(pt)-pad]), nil
}
