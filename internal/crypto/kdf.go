package crypto

import (
	"crypto/rand"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/jLantxa/mapache-sub000/internal/errors"
)

// saltLength is the size in bytes of the random salt stored alongside a
// KeyFile. Fixed at 32, independent of scrypt's own recommendations, so
// every KeyFile on disk has a predictable size.
const saltLength = 32

// Params are the scrypt cost parameters used by KDF.
type Params struct {
	N int
	R int
	P int
}

// DefaultKDFParams match scrypt's own recommended interactive-login cost,
// tuned for a derivation that takes a few hundred milliseconds on
// contemporary hardware.
var DefaultKDFParams = Params{
	N: 1 << 20,
	R: 8,
	P: 1,
}

// minParams is the floor accepted by Check: below this the derived key
// would be too cheap to compute to resist offline attacks.
var minParams = Params{N: 1 << 14, R: 8, P: 1}

// Check rejects parameters weaker than minParams.
func (p Params) Check() error {
	if p.N < minParams.N {
		return errors.Errorf("scrypt N=%d too low, minimum is %d", p.N, minParams.N)
	}
	if p.R < minParams.R {
		return errors.Errorf("scrypt r=%d too low, minimum is %d", p.R, minParams.R)
	}
	if p.P < minParams.P {
		return errors.Errorf("scrypt p=%d too low, minimum is %d", p.P, minParams.P)
	}
	return nil
}

// Calibrate runs a handful of trial derivations to pick an N that keeps a
// single KDF call within timeout on the current machine, scaling memory
// usage no higher than memory MiB.
func Calibrate(timeout time.Duration, memory int) (Params, error) {
	p := DefaultKDFParams

	salt, err := NewSalt()
	if err != nil {
		return p, err
	}

	for {
		start := time.Now()
		_, err := scrypt.Key([]byte("calibration"), salt, p.N, p.R, p.P, macKeySize+aesKeySize)
		if err != nil {
			return DefaultKDFParams, errors.Wrap(err, "scrypt.Key")
		}
		elapsed := time.Since(start)

		memUsed := 128 * p.R * p.N
		if elapsed <= timeout || memUsed >= memory*1024*1024 {
			return p, nil
		}

		p.N *= 2
	}
}

// KDF derives encryption and message authentication keys from the password
// using the supplied parameters N, R and P and the Salt.
func KDF(p Params, salt []byte, password string) (*Key, error) {
	if len(salt) != saltLength {
		return nil, errors.Errorf("scrypt() called with invalid salt bytes (len %d)", len(salt))
	}

	if err := p.Check(); err != nil {
		return nil, errors.Wrap(err, "Check")
	}

	derKeys := &Key{}

	keybytes := macKeySize + aesKeySize
	scryptKeys, err := scrypt.Key([]byte(password), salt, p.N, p.R, p.P, keybytes)
	if err != nil {
		return nil, errors.Wrap(err, "scrypt.Key")
	}

	if len(scryptKeys) != keybytes {
		return nil, errors.Errorf("invalid numbers of bytes expanded from scrypt(): %d", len(scryptKeys))
	}

	// first 32 byte of scrypt output is the encryption key
	copy(derKeys.EncryptionKey[:], scryptKeys[:aesKeySize])

	// next 32 byte of scrypt output is the mac key, in the form k||r
	macKeyFromSlice(&derKeys.MACKey, scryptKeys[aesKeySize:])

	return derKeys, nil
}

// NewSalt returns new random salt bytes to use with KDF(). If NewSalt returns
// an error, this is a grave situation and the program must abort and terminate.
func NewSalt() ([]byte, error) {
	buf := make([]byte, saltLength)
	n, err := rand.Read(buf)
	if n != saltLength || err != nil {
		panic("unable to read enough random bytes for new salt")
	}

	return buf, nil
}
