package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// ErrNoKeyFound is returned when no stored KeyFile can be unlocked with the
// given password.
var ErrNoKeyFound = errors.New("wrong password or no key found")

// keyFile is the on-disk representation of one password-protected wrapping
// of the repository's master key. It is zstd-compressed but not encrypted,
// since it must be self-describing to anyone holding the right password;
// the master key itself is protected by AEAD sealing under the
// password-derived key.
type keyFile struct {
	Created      time.Time `json:"created"`
	EncryptedKey string    `json:"encrypted_key"`
	Salt         string    `json:"salt"`
	N            int       `json:"N"`
	R            int       `json:"r"`
	P            int       `json:"p"`
}

// createKey derives a key-encryption key from password, seals master under
// it, and writes the resulting KeyFile to the backend. It returns the ID
// the KeyFile was stored under.
func createKey(ctx context.Context, be backend.Backend, password string, master *crypto.Key, params crypto.Params) (objects.ID, error) {
	salt, err := crypto.NewSalt()
	if err != nil {
		return objects.ID{}, err
	}

	kek, err := crypto.KDF(params, salt, password)
	if err != nil {
		return objects.ID{}, err
	}

	masterBytes, err := json.Marshal(master)
	if err != nil {
		return objects.ID{}, err
	}

	sealed := crypto.Encrypt(kek, masterBytes)

	kf := keyFile{
		Created:      time.Now(),
		EncryptedKey: base64.StdEncoding.EncodeToString(sealed),
		Salt:         base64.StdEncoding.EncodeToString(salt),
		N:            params.N,
		R:            params.R,
		P:            params.P,
	}

	raw, err := json.Marshal(kf)
	if err != nil {
		return objects.ID{}, err
	}
	compressed := crypto.Compress(raw)
	id := objects.Hash(compressed)

	h := backend.Handle{Type: backend.KeyFile, Name: id.String(), IsMetadata: true}
	if err := be.Save(ctx, h, backend.NewByteReader(compressed, be.Hasher())); err != nil {
		return objects.ID{}, err
	}

	return id, nil
}

// openKey tries every KeyFile stored in the backend against password,
// returning the first master key it unlocks.
func openKey(ctx context.Context, be backend.Backend, password string) (*crypto.Key, error) {
	var found *crypto.Key

	err := be.List(ctx, backend.KeyFile, func(fi backend.FileInfo) error {
		if found != nil {
			return nil
		}

		h := backend.Handle{Type: backend.KeyFile, Name: fi.Name, IsMetadata: true}
		var compressed []byte
		err := be.Load(ctx, h, 0, 0, func(rd io.Reader) error {
			data, err := io.ReadAll(rd)
			compressed = data
			return err
		})
		if err != nil {
			return nil
		}

		raw, err := crypto.Decompress(compressed)
		if err != nil {
			return nil
		}

		var kf keyFile
		if err := json.Unmarshal(raw, &kf); err != nil {
			return nil
		}

		salt, err := base64.StdEncoding.DecodeString(kf.Salt)
		if err != nil {
			return nil
		}
		sealed, err := base64.StdEncoding.DecodeString(kf.EncryptedKey)
		if err != nil {
			return nil
		}

		kek, err := crypto.KDF(crypto.Params{N: kf.N, R: kf.R, P: kf.P}, salt, password)
		if err != nil {
			return nil
		}

		masterBytes, err := crypto.Decrypt(kek, sealed)
		if err != nil {
			return nil
		}

		var master crypto.Key
		if err := json.Unmarshal(masterBytes, &master); err != nil {
			return nil
		}

		found = &master
		return nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, ErrNoKeyFound
	}
	return found, nil
}
