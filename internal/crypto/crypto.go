package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/jLantxa/mapache-sub000/internal/errors"

	"golang.org/x/crypto/poly1305"
)

const (
	aesKeySize  = 32                        // for AES-256
	macKeySizeK = 16                        // for AES-128
	macKeySizeR = 16                        // for Poly1305
	macKeySize  = macKeySizeK + macKeySizeR // for Poly1305-AES128
	ivSize      = aes.BlockSize

	macSize = poly1305.TagSize

	// Extension is the number of bytes a blob grows by once stored on disk:
	// the nonce plus the authentication tag. Low-level Seal calls only add
	// the tag (see Overhead); callers that also persist the nonce alongside
	// the ciphertext (the repository's blob encoding, see codec.go) need to
	// budget for the full Extension.
	Extension = ivSize + macSize
)

// ErrUnauthenticated is returned when ciphertext verification has failed.
var ErrUnauthenticated = errors.New("ciphertext verification failed")

// ErrInvalidCiphertext is returned when trying to encrypt into the slice that
// holds the plaintext.
var ErrInvalidCiphertext = errors.New("invalid ciphertext, same slice used for plaintext")

// Key holds encryption and message authentication keys for a repository. It is stored
// encrypted and authenticated as a JSON data structure in the Data field of the Key
// structure.
type Key struct {
	MACKey        `json:"mac"`
	EncryptionKey `json:"encrypt"`
}

// EncryptionKey is key used for encryption
type EncryptionKey [32]byte

// MACKey is used to sign (authenticate) data.
type MACKey struct {
	K [16]byte // for AES-128
	R [16]byte // for Poly1305

	masked bool // remember if the MAC key has already been masked
}

// mask for key, (cf. http://cr.yp.to/mac/poly1305-20050329.pdf)
var poly1305KeyMask = [16]byte{
	0xff,
	0xff,
	0xff,
	0x0f, // 3: top four bits zero
	0xfc, // 4: bottom two bits zero
	0xff,
	0xff,
	0x0f, // 7: top four bits zero
	0xfc, // 8: bottom two bits zero
	0xff,
	0xff,
	0x0f, // 11: top four bits zero
	0xfc, // 12: bottom two bits zero
	0xff,
	0xff,
	0x0f, // 15: top four bits zero
}

func poly1305MAC(msg []byte, nonce []byte, key *MACKey) []byte {
	k := poly1305PrepareKey(nonce, key)

	var out [16]byte
	poly1305.Sum(&out, msg, &k)

	return out[:]
}

// mask poly1305 key
func maskKey(k *MACKey) {
	if k == nil || k.masked {
		return
	}

	for i := 0; i < poly1305.TagSize; i++ {
		k.R[i] = k.R[i] & poly1305KeyMask[i]
	}

	k.masked = true
}

// construct mac key from slice (k||r), with masking
func macKeyFromSlice(mk *MACKey, data []byte) {
	copy(mk.K[:], data[:16])
	copy(mk.R[:], data[16:32])
	maskKey(mk)
}

// prepare key for low-level poly1305.Sum(): r||n
func poly1305PrepareKey(nonce []byte, key *MACKey) [32]byte {
	var k [32]byte

	maskKey(key)

	blockCipher, err := aes.NewCipher(key.K[:])
	if err != nil {
		panic(err)
	}
	blockCipher.Encrypt(k[16:], nonce[:16])

	copy(k[:16], key.R[:])

	return k
}

func poly1305Verify(msg []byte, nonce []byte, key *MACKey, mac []byte) bool {
	k := poly1305PrepareKey(nonce, key)

	var m [16]byte
	copy(m[:], mac)

	return poly1305.Verify(&m, msg, &k)
}

// NewRandomKey returns new encryption and message authentication keys.
func NewRandomKey() *Key {
	k := &Key{}

	n, err := rand.Read(k.EncryptionKey[:])
	if n != aesKeySize || err != nil {
		panic("unable to read enough random bytes for encryption key")
	}

	n, err = rand.Read(k.MACKey.K[:])
	if n != macKeySizeK || err != nil {
		panic("unable to read enough random bytes for MAC encryption key")
	}

	n, err = rand.Read(k.MACKey.R[:])
	if n != macKeySizeR || err != nil {
		panic("unable to read enough random bytes for MAC key")
	}

	maskKey(&k.MACKey)
	return k
}

// NewRandomNonce returns a new random nonce, suitable for use with Seal and
// Open. The nonce doubles as the AES-CTR IV.
func NewRandomNonce() []byte {
	nonce := make([]byte, ivSize)
	n, err := rand.Read(nonce)
	if n != ivSize || err != nil {
		panic("unable to read enough random bytes for nonce")
	}
	return nonce
}

// validNonce reports whether nonce has the right length and is not all-zero,
// which would indicate a bug in the caller rather than a legitimate nonce.
func validNonce(nonce []byte) bool {
	if len(nonce) != ivSize {
		return false
	}
	for _, b := range nonce {
		if b != 0 {
			return true
		}
	}
	return false
}

type jsonMACKey struct {
	K []byte `json:"k"`
	R []byte `json:"r"`
}

// MarshalJSON converts the MACKey to JSON.
func (m *MACKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMACKey{K: m.K[:], R: m.R[:]})
}

// UnmarshalJSON fills the key m with data from the JSON representation.
func (m *MACKey) UnmarshalJSON(data []byte) error {
	j := jsonMACKey{}
	err := json.Unmarshal(data, &j)
	if err != nil {
		return errors.Wrap(err, "Unmarshal")
	}
	copy(m.K[:], j.K)
	copy(m.R[:], j.R)

	return nil
}

// Valid tests whether the key m is valid (i.e. not zero).
func (m *MACKey) Valid() bool {
	nonzeroK := false
	for i := 0; i < len(m.K); i++ {
		if m.K[i] != 0 {
			nonzeroK = true
		}
	}

	if !nonzeroK {
		return false
	}

	for i := 0; i < len(m.R); i++ {
		if m.R[i] != 0 {
			return true
		}
	}

	return false
}

// MarshalJSON converts the EncryptionKey to JSON.
func (k *EncryptionKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k[:])
}

// UnmarshalJSON fills the key k with data from the JSON representation.
func (k *EncryptionKey) UnmarshalJSON(data []byte) error {
	d := make([]byte, aesKeySize)
	err := json.Unmarshal(data, &d)
	if err != nil {
		return errors.Wrap(err, "Unmarshal")
	}
	copy(k[:], d)

	return nil
}

// Valid tests whether the key k is valid (i.e. not zero).
func (k *EncryptionKey) Valid() bool {
	for i := 0; i < len(k); i++ {
		if k[i] != 0 {
			return true
		}
	}

	return false
}

// Valid tests if the key is valid.
func (k *Key) Valid() bool {
	return k.EncryptionKey.Valid() && k.MACKey.Valid()
}

// Overhead returns the number of bytes a call to Seal adds to plaintext.
// additionalData is accepted for API symmetry with stdlib AEADs but is not
// authenticated by this construction.
func (k *Key) Overhead() int {
	return macSize
}

// Seal encrypts and authenticates plaintext using nonce (ivSize bytes,
// unique per call for a given key) and appends the result to dst, returning
// the extended slice. dst and plaintext must not point to overlapping
// memory unless they fully coincide.
func (k *Key) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	if !k.Valid() {
		panic("Seal() called with invalid key")
	}
	if !validNonce(nonce) {
		panic("invalid nonce passed to Seal()")
	}

	if len(plaintext) > 0 && len(dst) > 0 && &plaintext[0] == &dst[0] {
		panic(ErrInvalidCiphertext)
	}

	prefix := len(dst)
	total := prefix + len(plaintext) + macSize

	var out []byte
	if cap(dst) >= total {
		out = dst[:total]
	} else {
		out = append(dst, make([]byte, len(plaintext)+macSize)...)
	}

	ciphertext := out[prefix : prefix+len(plaintext)]

	c, err := aes.NewCipher(k.EncryptionKey[:])
	if err != nil {
		panic(fmt.Sprintf("unable to create cipher: %v", err))
	}
	e := cipher.NewCTR(c, nonce)
	e.XORKeyStream(ciphertext, plaintext)

	mac := poly1305MAC(ciphertext, nonce, &k.MACKey)
	copy(out[prefix+len(plaintext):], mac)

	return out
}

// Open verifies and decrypts ciphertext (as produced by Seal with the same
// nonce), appending the plaintext to dst.
func (k *Key) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if !k.Valid() {
		return nil, errors.New("invalid key")
	}
	if !validNonce(nonce) {
		return nil, errors.New("invalid nonce")
	}

	if len(ciphertext) < macSize {
		return nil, errors.Errorf("trying to decrypt invalid data: ciphertext too small")
	}

	l := len(ciphertext) - macSize
	data, mac := ciphertext[:l], ciphertext[l:]

	if !poly1305Verify(data, nonce, &k.MACKey, mac) {
		return nil, ErrUnauthenticated
	}

	prefix := len(dst)
	total := prefix + l

	var out []byte
	if cap(dst) >= total {
		out = dst[:total]
	} else {
		out = append(dst, make([]byte, l)...)
	}

	c, err := aes.NewCipher(k.EncryptionKey[:])
	if err != nil {
		panic(fmt.Sprintf("unable to create cipher: %v", err))
	}
	e := cipher.NewCTR(c, nonce)
	e.XORKeyStream(out[prefix:], data)

	return out, nil
}
