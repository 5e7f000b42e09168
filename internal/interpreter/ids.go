package interpreter

import (
	"net/url"
	"strings"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

// PostID extracts the trailing segment of a URN such as
// "urn:li:activity:7110000000000000000".
func PostID(urn string) string {
	urn = strings.TrimSpace(urn)
	i := strings.LastIndex(urn, ":")
	if i < 0 {
		return schemas.UnknownSubjectID
	}
	id := strings.TrimSpace(urn[i+1:])
	if id == "" {
		return schemas.UnknownSubjectID
	}
	return id
}

// ProfileID extracts the vanity name from a profile URL such as
// "https://www.linkedin.com/in/jane-doe/?miniProfileUrn=...".
func ProfileID(profileURL string) string {
	path := strings.TrimSpace(profileURL)
	if u, err := url.Parse(path); err == nil && u.Path != "" {
		path = u.Path
	}
	_, rest, found := strings.Cut(path, "/in/")
	if !found {
		return schemas.UnknownSubjectID
	}
	id, _, _ := strings.Cut(rest, "/")
	if id == "" {
		return schemas.UnknownSubjectID
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	return id
}

// IsKnown reports whether id is a usable subject id.
func IsKnown(id string) bool {
	return id != "" && id != schemas.UnknownSubjectID
}
