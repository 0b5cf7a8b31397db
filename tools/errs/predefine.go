package errs

import "net/http"

const (
	ServerInternalError = 500
	ArgsError           = 1001
	RecordNotFoundError = 1004
	RecordExistError    = 1009
	ForbiddenError      = 1003
	PersistenceError    = 1500

	// AuthRejected family
	TokenError        = 1501
	TokenMissingError = 1502
	TokenInvalidError = 1503
	UserNotFoundError = 1504
)

var (
	ErrArgs           = NewCodeError(ArgsError, "invalid arguments")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "record not found")
	ErrRecordIsExist  = NewCodeError(RecordExistError, "record already exists")
	ErrForbidden      = NewCodeError(ForbiddenError, "forbidden")
	ErrPersistence    = NewCodeError(PersistenceError, "persistence failure")
	ErrServerInternal = NewCodeError(ServerInternalError, "server error")

	ErrToken        = NewCodeError(TokenError, "authentication error")
	ErrTokenMissing = NewCodeError(TokenMissingError, "no token provided")
	ErrTokenInvalid = NewCodeError(TokenInvalidError, "invalid token")
	ErrUserNotFound = NewCodeError(UserNotFoundError, "user not found")
)

func init() {
	_ = DefaultCodeRelation.Add(TokenError, TokenMissingError)
	_ = DefaultCodeRelation.Add(TokenError, TokenInvalidError)
	_ = DefaultCodeRelation.Add(TokenError, UserNotFoundError)
}

// HTTPStatus maps a code to the status used when it reaches a client.
func HTTPStatus(code int) int {
	switch code {
	case ArgsError:
		return http.StatusBadRequest
	case TokenError, TokenMissingError, TokenInvalidError:
		return http.StatusUnauthorized
	case UserNotFoundError, RecordNotFoundError:
		return http.StatusNotFound
	case ForbiddenError:
		return http.StatusForbidden
	case RecordExistError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
