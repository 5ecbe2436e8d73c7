package feature

import "testing"

// TestSetFlag overrides name's value for the duration of a test, returning
// a function that restores the previous value when called.
func TestSetFlag(t testing.TB, flags *FlagSet, name FlagName, value bool) func() {
	t.Helper()

	flags.mu.Lock()
	old := flags.value[name]
	flags.mu.Unlock()

	flags.mu.Lock()
	flags.value[name] = value
	flags.mu.Unlock()

	return func() {
		flags.mu.Lock()
		flags.value[name] = old
		flags.mu.Unlock()
	}
}
