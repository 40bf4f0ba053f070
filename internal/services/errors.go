package services

import (
	"errors"
	"strings"
)

// ErrDraftDownload is a business-rule violation: downloads are only
// valid for published articles. Distinct from a permission error; the
// requester was allowed to download, the article just isn't published.
var ErrDraftDownload = errors.New("article is not published and cannot be downloaded")

// ErrSelfDelete guards the acting admin from deleting their own account.
var ErrSelfDelete = errors.New("cannot delete your own account")

// ValidationError carries the full batch of field violations for one
// request, so the client can display all problems at once instead of
// fixing them one by one.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
