package crypto

import (
	"github.com/klauspost/compress/zstd"

	"github.com/jLantxa/mapache-sub000/internal/errors"
)

// compressionWindowLog fixes the zstd window to 1MiB (2^20) for every blob,
// independent of the chunk size actually stored, so that decoders never need
// to negotiate a window size out of band.
const compressionWindowLog = 20

var encoder, _ = zstd.NewWriter(nil,
	zstd.WithWindowSize(1<<compressionWindowLog),
	zstd.WithEncoderLevel(zstd.SpeedDefault))

var decoder, _ = zstd.NewReader(nil,
	zstd.WithDecoderMaxWindow(1<<compressionWindowLog))

// Compress returns the zstd-compressed form of data.
func Compress(data []byte) []byte {
	return encoder.EncodeAll(data, make([]byte, 0, len(data)))
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, "zstd decompress")
	}
	return out, nil
}

// Encrypt seals plaintext under key with a freshly generated random nonce,
// returning nonce || ciphertext || tag as a single self-contained blob. This
// is the on-disk representation the repository stores: callers never manage
// nonces themselves.
func Encrypt(key *Key, plaintext []byte) []byte {
	nonce := NewRandomNonce()
	buf := make([]byte, len(nonce), len(nonce)+len(plaintext)+key.Overhead())
	copy(buf, nonce)
	return key.Seal(buf, nonce, plaintext, nil)
}

// Decrypt reverses Encrypt: it splits the leading nonce from data and
// verifies and decrypts the remainder.
func Decrypt(key *Key, data []byte) ([]byte, error) {
	if len(data) < ivSize {
		return nil, errors.New("ciphertext too short to contain a nonce")
	}
	nonce, ciphertext := data[:ivSize], data[ivSize:]
	return key.Open(nil, nonce, ciphertext, nil)
}

// Encode compresses data and then encrypts it under key, producing the byte
// sequence written to a pack file for a single blob.
func Encode(key *Key, data []byte) []byte {
	return Encrypt(key, Compress(data))
}

// Decode reverses Encode.
func Decode(key *Key, data []byte) ([]byte, error) {
	plain, err := Decrypt(key, data)
	if err != nil {
		return nil, err
	}
	return Decompress(plain)
}
