package feature

// BackendErrorRedesign governs the stricter backend-error classification
// used by the retrying backend wrapper: once enabled, only errors the
// backend explicitly marks permanent are treated as non-retriable.
const BackendErrorRedesign = FlagName("backend-error-redesign")

// Flag is the process-wide feature flag set consulted by backend code.
var Flag = New()

func init() {
	Flag.SetFlags(map[FlagName]FlagDesc{
		BackendErrorRedesign: {
			Type:        Beta,
			Description: "classify backend errors as permanent only when the backend says so explicitly",
		},
	})
}
