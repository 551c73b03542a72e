package mirror

// Response is the normalized result of a single attempt against a
// mirror backend, for a payload of type T (either []byte for archives
// and images, or raw, not-yet-decoded JSON for metadata). It is the uniform
// envelope described by the mirror backend contract: every concrete
// backend returns one of these instead of raising to its caller.
//
// Invariant: IsSuccess == false implies HasData == false. A response
// with IsSuccess == true and HasData == false means the upstream
// authoritatively reported the resource absent (HTTP 404/451).
type Response[T any] struct {
	Data       T
	HasData    bool
	IsSuccess  bool
	RequestURL string
	StatusCode *int
	Error      string
}

// Success builds a Response carrying a present payload.
func Success[T any](data T, requestURL string, statusCode int) Response[T] {
	code := statusCode
	return Response[T]{
		Data:       data,
		HasData:    true,
		IsSuccess:  true,
		RequestURL: requestURL,
		StatusCode: &code,
	}
}

// Absent builds a Response for an authoritative "not found" (404/451).
// The mirror is healthy; the resource simply does not exist there.
func Absent[T any](requestURL string, statusCode int) Response[T] {
	code := statusCode
	return Response[T]{
		HasData:    false,
		IsSuccess:  true,
		RequestURL: requestURL,
		StatusCode: &code,
	}
}

// Failure builds a Response for a transport error, an unexpected
// status code, or a validation failure. The caller never sees a Go
// error return from a Backend method; this is how failures propagate.
func Failure[T any](requestURL string, statusCode *int, err error) Response[T] {
	return Response[T]{
		IsSuccess:  false,
		RequestURL: requestURL,
		StatusCode: statusCode,
		Error:      err.Error(),
	}
}
