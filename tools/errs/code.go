package errs

// Internal error codes. Protocol-visible statuses live in service/chat/status.go;
// these cover failures that never leave the process except through logs.
const (
	CodeAuthNoToken             = 1001
	CodeAuthTokenExpired        = 1002
	CodeAuthInvalidToken        = 1003
	CodeAuthRefreshTokenExpired = 1004

	CodeStorageUnavailable = 2001
	CodeRecordNotFound     = 2002

	CodeTransferNotFound = 3001
	CodeTransferIO       = 3002

	CodePushAuth      = 4001
	CodePushTransport = 4002
)

var (
	ErrNoToken             = NewCodeError(CodeAuthNoToken, "AUTHENTICATION_ERROR_NO_TOKEN_PROVIDED")
	ErrTokenExpired        = NewCodeError(CodeAuthTokenExpired, "AUTHENTICATION_ERROR_TOKEN_EXPIRED")
	ErrInvalidToken        = NewCodeError(CodeAuthInvalidToken, "AUTHENTICATION_ERROR_INVALID_TOKEN")
	ErrRefreshTokenExpired = NewCodeError(CodeAuthRefreshTokenExpired, "AUTHENTICATION_ERROR_REFRESH_TOKEN_EXPIRED")

	ErrRecordNotFound   = NewCodeError(CodeRecordNotFound, "record not found")
	ErrTransferNotFound = NewCodeError(CodeTransferNotFound, "media transfer not found")
	ErrTransferIO       = NewCodeError(CodeTransferIO, "media transfer write failed")

	ErrPushAuth      = NewCodeError(CodePushAuth, "oauth token exchange failed")
	ErrPushTransport = NewCodeError(CodePushTransport, "fcm send failed")
)

func New(msg string) *CodeError {
	e := NewCodeError(500, msg)
	return &e
}
