package domain

import "fmt"

const (
	authorDisplayNameKey = "displayName"
	authorUIDKey         = "uid"
)

// Identity is what the authentication provider knows about the signed-in user.
type Identity struct {
	UID         string
	DisplayName string
}

// Author identifies the user who wrote a post or comment. Authors are
// embedded by value in the records that reference them.
type Author struct {
	DisplayName string
	UID         string
}

// AuthorFromIdentity builds an Author for the given identity. A nil identity,
// or one without a uid or display name, means nobody is signed in.
func AuthorFromIdentity(id *Identity) (Author, error) {
	if id == nil || id.UID == "" || id.DisplayName == "" {
		return Author{}, ErrNotAuthenticated
	}
	return Author{DisplayName: id.DisplayName, UID: id.UID}, nil
}

// Equal reports whether a and other are the same user.
func (a Author) Equal(other Author) bool {
	return a.UID == other.UID
}

// Record returns the wire form of the author.
func (a Author) Record() Record {
	return Record{
		authorDisplayNameKey: a.DisplayName,
		authorUIDKey:         a.UID,
	}
}

// AuthorFromRecord parses an author record.
func AuthorFromRecord(v any) (Author, error) {
	rec, ok := asMap(v)
	if !ok {
		return Author{}, fmt.Errorf("%w: author is %T, want map", ErrDeserialization, v)
	}
	name, err := requiredString(rec, authorDisplayNameKey)
	if err != nil {
		return Author{}, fmt.Errorf("author: %w", err)
	}
	uid, err := requiredString(rec, authorUIDKey)
	if err != nil {
		return Author{}, fmt.Errorf("author: %w", err)
	}
	return Author{DisplayName: name, UID: uid}, nil
}
