package models

// ErrorCode 是跨组件边界传递的错误分类，总是以数据的形式出现在结果中。
type ErrorCode string

const (
	ErrMissingField        ErrorCode = "MissingField"
	ErrInvalidField        ErrorCode = "InvalidField"
	ErrUnknownKind         ErrorCode = "UnknownKind"
	ErrSourceMismatch      ErrorCode = "SourceMismatch"
	ErrRateLimited         ErrorCode = "RateLimited"
	ErrAccessDenied        ErrorCode = "AccessDenied"
	ErrConsentRevoked      ErrorCode = "ConsentRevoked"
	ErrAdapterFailure      ErrorCode = "AdapterFailure"
	ErrTimeout             ErrorCode = "Timeout"
	ErrUnsupportedPlatform ErrorCode = "UnsupportedPlatform"
	ErrInternal            ErrorCode = "Internal"
)
