package carescore

import "fmt"

// UnknownUserError means the user has no baseline rows at all, so there is
// no reference to score against.
type UnknownUserError struct {
	UserID int64
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("carescore: user %d has no baselines", e.UserID)
}

// ValidationError reports a score request payload that failed schema
// validation. Surfaces as HTTP 422 at the API boundary.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "carescore: invalid score input: " + e.Detail
}
