package evaluation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var loginPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// ParseHandle accepts a login, an "@login", or a profile URL and returns the
// bare login, lower-cased since logins are case-insensitive.
func ParseHandle(input string) (string, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return "", &ValidationError{Field: "handle", Reason: "a login or profile url is required"}
	}
	cleaned := strings.TrimPrefix(raw, "@")

	if strings.HasPrefix(cleaned, "http://") || strings.HasPrefix(cleaned, "https://") {
		u, err := url.Parse(cleaned)
		if err != nil {
			return "", &ValidationError{Field: "handle", Input: raw, Reason: "malformed url"}
		}
		for _, part := range strings.Split(u.Path, "/") {
			if part == "" {
				continue
			}
			if !loginPattern.MatchString(part) {
				break
			}
			return strings.ToLower(part), nil
		}
		return "", &ValidationError{Field: "handle", Input: raw, Reason: "url has no login"}
	}

	if !loginPattern.MatchString(cleaned) {
		return "", &ValidationError{Field: "handle", Input: raw, Reason: "logins may only contain letters, digits and dashes"}
	}
	return strings.ToLower(cleaned), nil
}

func ParseJobID(input string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil, &ValidationError{Field: "job id", Input: input, Reason: "not a uuid"}
	}
	return id, nil
}
