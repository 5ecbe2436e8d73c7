// Package test provides small assertion helpers shared by the test suites
// across the repository, in the style of testify but dependency-free.
package test

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

// TestTempDir is the base directory new temporary test directories are
// created under. It defaults to the system default but can be pinned via
// the TEST_TEMP_DIR environment variable.
var TestTempDir = os.Getenv("TEST_TEMP_DIR")

// TestCleanupTempDirs controls whether temporary directories created by
// tests are removed afterwards. Set TEST_KEEP_TEMP_DIRS to disable cleanup
// when inspecting a failing test's fixture by hand.
var TestCleanupTempDirs = os.Getenv("TEST_KEEP_TEMP_DIRS") == ""

// BenchArchiveDirectory optionally names a real directory that slow,
// filesystem-backed benchmarks should archive. Benchmarks that need it
// skip themselves when it's unset.
var BenchArchiveDirectory = os.Getenv("TEST_BENCH_ARCHIVE_DIR")

// RemoveAll removes path and everything beneath it, failing the test if
// that doesn't succeed.
func RemoveAll(tb testing.TB, path string) {
	tb.Helper()
	OK(tb, os.RemoveAll(path))
}

// Assert fails the test if condition is false.
func Assert(tb testing.TB, condition bool, msg string, v ...interface{}) {
	tb.Helper()
	if !condition {
		tb.Fatalf(msg, v...)
	}
}

// OK fails the test if err is not nil.
func OK(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		tb.Fatalf("%s:%d: unexpected error: %v", filepath.Base(file), line, err)
	}
}

// Equals fails the test if exp is not equal to act. An optional message
// (formatted like Errorf, with args flattened after it) replaces the
// default exp/got dump in the failure output.
func Equals(tb testing.TB, exp, act interface{}, msg ...interface{}) {
	tb.Helper()
	if !reflect.DeepEqual(exp, act) {
		_, file, line, _ := runtime.Caller(1)
		if len(msg) > 0 {
			tb.Fatalf("%s:%d: %s", filepath.Base(file), line, fmt.Sprint(msg...))
			return
		}
		tb.Fatalf("%s:%d:\n\n\texp: %s\n\n\tgot: %s", filepath.Base(file), line,
			fmt.Sprintf("%#v", exp), fmt.Sprintf("%#v", act))
	}
}

// Random returns count bytes of deterministic pseudo-random data seeded with
// seed, for reproducible test fixtures.
func Random(seed, count int) []byte {
	rnd := rand.New(rand.NewSource(int64(seed)))
	buf := make([]byte, count)
	_, _ = rnd.Read(buf)
	return buf
}
