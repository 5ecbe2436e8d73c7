package repository

import (
	"context"
	"testing"

	"github.com/jLantxa/mapache-sub000/internal/backend/mem"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	rtest "github.com/jLantxa/mapache-sub000/internal/test"
)

func TestCreateAndOpenKeyRoundTrip(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	master := crypto.NewRandomKey()

	_, err := createKey(ctx, be, "correct horse", master, testKDFParams)
	rtest.OK(t, err)

	opened, err := openKey(ctx, be, "correct horse")
	rtest.OK(t, err)
	rtest.Equals(t, master.EncryptionKey, opened.EncryptionKey)
	rtest.Equals(t, master.MACKey.K, opened.MACKey.K)
	rtest.Equals(t, master.MACKey.R, opened.MACKey.R)
}

func TestOpenKeyWrongPassword(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	master := crypto.NewRandomKey()

	_, err := createKey(ctx, be, "correct horse", master, testKDFParams)
	rtest.OK(t, err)

	_, err = openKey(ctx, be, "wrong password")
	rtest.Assert(t, err == ErrNoKeyFound, "expected ErrNoKeyFound, got %v", err)
}

func TestOpenKeyMultipleKeyFiles(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	master := crypto.NewRandomKey()

	_, err := createKey(ctx, be, "first", master, testKDFParams)
	rtest.OK(t, err)
	_, err = createKey(ctx, be, "second", master, testKDFParams)
	rtest.OK(t, err)

	opened, err := openKey(ctx, be, "second")
	rtest.OK(t, err)
	rtest.Equals(t, master.EncryptionKey, opened.EncryptionKey)

	opened, err = openKey(ctx, be, "first")
	rtest.OK(t, err)
	rtest.Equals(t, master.EncryptionKey, opened.EncryptionKey)
}
