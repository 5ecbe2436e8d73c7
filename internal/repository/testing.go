package repository

import (
	"context"
	"testing"

	"github.com/jLantxa/mapache-sub000/internal/backend/mem"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
)

// testPassword is the fixed password used by every test repository; tests
// never exercise password handling itself.
const testPassword = "geheim"

// testKDFParams is far weaker than DefaultKDFParams so repository creation
// in tests doesn't pay scrypt's real cost on every run.
var testKDFParams = crypto.Params{N: 1 << 14, R: 8, P: 1}

// TestRepository returns a fresh Repository backed by an in-memory backend,
// along with a cleanup function registered via t.Cleanup.
func TestRepository(t testing.TB) *Repository {
	repo, _ := TestRepositoryWithVersion(t, CurrentRepoVersion)
	return repo
}

// TestRepositoryWithVersion returns a fresh Repository whose manifest
// claims the given format version, along with a cleanup function. Only
// CurrentRepoVersion is actually supported; the parameter exists so tests
// written against multiple on-disk formats keep a stable call shape.
func TestRepositoryWithVersion(t testing.TB, version uint) (*Repository, func()) {
	t.Helper()

	be := mem.New()
	repo, err := Create(context.Background(), be, testPassword, testKDFParams)
	if err != nil {
		t.Fatal(err)
	}

	cleanup := func() {
		_ = be.Close()
	}
	t.Cleanup(cleanup)

	return repo, cleanup
}

// TestAllVersions runs fn once per supported repository format version.
// There is currently only one.
func TestAllVersions(t *testing.T, fn func(t *testing.T, version uint)) {
	t.Helper()
	for _, version := range []uint{CurrentRepoVersion} {
		t.Run("", func(t *testing.T) {
			fn(t, version)
		})
	}
}

// BenchmarkAllVersions runs fn once per supported repository format
// version as a sub-benchmark.
func BenchmarkAllVersions(b *testing.B, fn func(b *testing.B, version uint)) {
	b.Helper()
	for _, version := range []uint{CurrentRepoVersion} {
		b.Run("", func(b *testing.B) {
			fn(b, version)
		})
	}
}

// TestUseLowSecurityKDFParameters lowers the KDF cost used by TestRepository
// for the remainder of the test binary's run, for benchmarks that would
// otherwise spend most of their time in scrypt.
func TestUseLowSecurityKDFParameters(tb testing.TB) {
	tb.Helper()
	testKDFParams = crypto.Params{N: 1 << 14, R: 8, P: 1}
}
