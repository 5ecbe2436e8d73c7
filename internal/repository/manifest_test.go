package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/backend/mem"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	rtest "github.com/jLantxa/mapache-sub000/internal/test"
)

func TestWriteAndReadManifest(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	codec := crypto.NewRandomKey()

	written, err := writeManifest(ctx, be, codec)
	rtest.OK(t, err)
	rtest.Equals(t, uint(CurrentRepoVersion), written.Version)

	read, err := readManifest(ctx, be, codec)
	rtest.OK(t, err)
	rtest.Equals(t, written.ID, read.ID)
	rtest.Equals(t, written.Version, read.Version)
	rtest.Equals(t, written.ChunkerPol, read.ChunkerPol)
}

func TestWriteManifestRefusesToOverwrite(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	codec := crypto.NewRandomKey()

	_, err := writeManifest(ctx, be, codec)
	rtest.OK(t, err)

	_, err = writeManifest(ctx, be, codec)
	rtest.Assert(t, err != nil, "writing a manifest over an existing one must fail")
}

func TestReadManifestRejectsWrongVersion(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	codec := crypto.NewRandomKey()

	raw, err := json.Marshal(manifest{Version: CurrentRepoVersion + 1, ID: "deadbeef"})
	rtest.OK(t, err)
	encoded := crypto.Encode(codec, raw)

	h := manifestHandle()
	rtest.OK(t, be.Save(ctx, h, backend.NewByteReader(encoded, be.Hasher())))

	_, err = readManifest(ctx, be, codec)
	rtest.Assert(t, err != nil, "readManifest must reject an unsupported version")
}
