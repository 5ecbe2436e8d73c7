package repository

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/restic/chunker"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// manifestName is the fixed, well-known name the manifest is stored under;
// unlike packs, snapshots and indexes, there is exactly one per repository
// and it is never addressed by content hash.
const manifestName = "manifest"

// CurrentRepoVersion is the only manifest version this implementation
// understands.
const CurrentRepoVersion = 1

// manifest is the small record written once at repository creation,
// identifying the repository and pinning its format version.
type manifest struct {
	Version     uint        `json:"version"`
	ID          string      `json:"id"`
	CreatedTime time.Time   `json:"created_time"`
	ChunkerPol  chunker.Pol `json:"chunker_polynomial"`
}

func manifestHandle() backend.Handle {
	return backend.Handle{Type: backend.ConfigFile, Name: manifestName, IsMetadata: true}
}

// writeManifest creates the repository's manifest file. It fails if one
// already exists, since init must never silently adopt an existing
// repository's identity.
func writeManifest(ctx context.Context, be backend.Backend, codec *crypto.Key) (manifest, error) {
	h := manifestHandle()
	if _, err := be.Stat(ctx, h); err == nil {
		return manifest{}, errors.New("repository already initialized")
	}

	pol, err := chunker.RandomPolynomial()
	if err != nil {
		return manifest{}, errors.Wrap(err, "select chunker polynomial")
	}

	m := manifest{
		Version:     CurrentRepoVersion,
		ID:          objects.NewRandomID().String(),
		CreatedTime: time.Now(),
		ChunkerPol:  pol,
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return manifest{}, err
	}
	encoded := crypto.Encode(codec, raw)

	if err := be.Save(ctx, h, backend.NewByteReader(encoded, be.Hasher())); err != nil {
		return manifest{}, err
	}
	return m, nil
}

// readManifest loads and decodes the repository's manifest.
func readManifest(ctx context.Context, be backend.Backend, codec *crypto.Key) (manifest, error) {
	h := manifestHandle()

	var encoded []byte
	err := be.Load(ctx, h, 0, 0, func(rd io.Reader) error {
		data, err := io.ReadAll(rd)
		encoded = data
		return err
	})
	if err != nil {
		return manifest{}, err
	}

	raw, err := crypto.Decode(codec, encoded)
	if err != nil {
		return manifest{}, errors.Wrap(err, "decode manifest")
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return manifest{}, errors.Wrap(err, "unmarshal manifest")
	}
	if m.Version != CurrentRepoVersion {
		return manifest{}, errors.Errorf("unsupported repository version %d", m.Version)
	}
	return m, nil
}
