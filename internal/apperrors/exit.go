package apperrors

// Process exit codes.
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitPartialFail = 2
)

// ExitCode maps the outcome of a run to a process exit code. failedHits is
// the number of hits that could not be materialized.
func ExitCode(err error, failedHits int) int {
	if IsFatal(err) {
		return ExitFatal
	}
	if failedHits > 0 {
		return ExitPartialFail
	}
	return ExitOK
}
