package domain

import "errors"

var (
	// ErrNotAuthenticated is returned when an operation needs a current user
	// and the authentication provider has none.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUpload is wrapped by every media upload failure, including an upload
	// that was acknowledged without an addressable location.
	ErrUpload = errors.New("upload failed")

	// ErrDeserialization is wrapped when a record cannot be parsed.
	ErrDeserialization = errors.New("malformed record")

	// ErrPersist is wrapped when the record backend rejects a write.
	ErrPersist = errors.New("persist failed")

	// ErrBlobNotFound is returned by blob stores for a path with no blob.
	ErrBlobNotFound = errors.New("blob not found")
)
