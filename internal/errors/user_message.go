package errors

// Messages shown to end users when the underlying error must not leak.
const (
	msgInternal    = "خطای داخلی رخ داد. لطفاً دوباره تلاش کنید."
	msgUnavailable = "سرویس بیرونی در دسترس نیست. لطفاً دوباره تلاش کنید."
)

// UserMessage returns the text a caller can display as-is. Business-rule
// errors (validation, conflict, not-found) already carry localized text and
// are passed through; infrastructure faults are replaced by a generic
// message so storage details never reach the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch CategoryOf(err) {
	case CategoryValidation, CategoryConflict, CategoryNotFound, CategoryState:
		return err.Error()
	case CategoryNetwork, CategoryExternal:
		return msgUnavailable
	default:
		return msgInternal
	}
}
