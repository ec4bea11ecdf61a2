package service

// RequestMeta carries the forensic network context of a mutating call.
// Zero value means no context was available (system-initiated work).
type RequestMeta struct {
	IP        string
	UserAgent string
}
