package repository

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// ParsePackHeader reads and decodes the header of the pack identified by id,
// returning its real (non-Padding) descriptors. It seeks the trailing 4-byte
// length field, then reads exactly that many encoded header bytes ending at
// EOF, so it never needs to know the pack's payload size ahead of time.
func ParsePackHeader(ctx context.Context, be backend.Backend, codec *crypto.Key, id objects.ID) ([]PackedBlobDescriptor, error) {
	h := backend.Handle{Type: backend.PackFile, Name: id.String()}

	info, err := be.Stat(ctx, h)
	if err != nil {
		return nil, err
	}
	if info.Size < trailerLen {
		return nil, errors.Errorf("pack %s: file too short to contain a header trailer", id.Str())
	}

	var trailer [trailerLen]byte
	err = be.Load(ctx, h, trailerLen, info.Size-trailerLen, func(rd io.Reader) error {
		_, err := io.ReadFull(rd, trailer[:])
		return err
	})
	if err != nil {
		return nil, err
	}

	headerLen := int64(binary.LittleEndian.Uint32(trailer[:]))
	if headerLen < 0 || headerLen+trailerLen > info.Size {
		return nil, errors.Errorf("pack %s: malformed header length %d", id.Str(), headerLen)
	}

	encodedHeader := make([]byte, headerLen)
	err = be.Load(ctx, h, int(headerLen), info.Size-trailerLen-headerLen, func(rd io.Reader) error {
		_, err := io.ReadFull(rd, encodedHeader)
		return err
	})
	if err != nil {
		return nil, err
	}

	rawHeader, err := crypto.Decode(codec, encodedHeader)
	if err != nil {
		return nil, errors.Wrap(err, "decode pack header")
	}

	return parseHeader(rawHeader)
}

// LoadPackedBlob reads and decodes the plaintext of the blob described by pb
// from its pack file.
func LoadPackedBlob(ctx context.Context, be backend.Backend, codec *crypto.Key, pb objects.PackedBlob) ([]byte, error) {
	h := backend.Handle{Type: backend.PackFile, Name: pb.PackID.String(), IsMetadata: false, BT: pb.Type}

	encoded := make([]byte, pb.Length)
	err := be.Load(ctx, h, int(pb.Length), int64(pb.Offset), func(rd io.Reader) error {
		_, err := io.ReadFull(rd, encoded)
		return err
	})
	if err != nil {
		return nil, err
	}

	plain, err := crypto.Decode(codec, encoded)
	if err != nil {
		return nil, errors.Wrap(err, "decode blob")
	}

	if got := objects.Hash(plain); !got.Equal(pb.ID) {
		return nil, errors.Errorf("blob %s: digest mismatch, got %s", pb.ID.Str(), got.Str())
	}

	return plain, nil
}
