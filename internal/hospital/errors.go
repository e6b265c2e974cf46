package hospital

import "errors"

var (
	// ErrNetwork covers transport failures, non-2xx reads and undecodable bodies
	ErrNetwork = errors.New("hospital: backend unreachable or returned an error")

	// ErrUpdateFailed is returned when the update endpoint answers non-2xx
	ErrUpdateFailed = errors.New("hospital: appointment update rejected")

	// ErrBookingFailed is returned when the booking endpoint answers non-2xx
	ErrBookingFailed = errors.New("hospital: appointment booking rejected")

	// ErrLoginFailed is returned when the login endpoint answers non-2xx
	ErrLoginFailed = errors.New("hospital: login rejected")

	// ErrInvalidCredentials is returned when login succeeds but no patient id comes back
	ErrInvalidCredentials = errors.New("hospital: invalid credentials")

	// ErrMissingDate is returned when a date-keyed request is issued without a date
	ErrMissingDate = errors.New("hospital: date is required")
)
