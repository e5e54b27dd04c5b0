package viewer

// statusState holds the loading flag and user-facing error message.
type statusState struct {
	loading bool
	errMsg  string
}

// onResolved starts a new attempt: loading while a location is set, and any
// previous error is cleared.
func (s *statusState) onResolved(key string) {
	s.loading = key != ""
	s.errMsg = ""
}

// onOutcome ends the attempt of the current epoch.
func (s *statusState) onOutcome(r *ForecastResult) {
	s.loading = false
	s.errMsg = r.Error
}
