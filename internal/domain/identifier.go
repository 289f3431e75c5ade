package domain

import "strings"

const invalidIdentifierMessage = "Please format as 'owner/repo'"

// RepositoryIdentifier names a repository on the metadata host
type RepositoryIdentifier struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// ParseRepositoryIdentifier parses "owner/name". Exactly one separator is
// allowed and both parts must be non-empty.
func ParseRepositoryIdentifier(input string) (RepositoryIdentifier, error) {
	input = strings.TrimSpace(input)
	if strings.Count(input, "/") != 1 {
		return RepositoryIdentifier{}, NewError(KindInvalidInput, invalidIdentifierMessage, nil)
	}

	owner, name, _ := strings.Cut(input, "/")
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if owner == "" || name == "" {
		return RepositoryIdentifier{}, NewError(KindInvalidInput, invalidIdentifierMessage, nil)
	}

	return RepositoryIdentifier{Owner: owner, Name: name}, nil
}

func (r RepositoryIdentifier) String() string {
	return r.Owner + "/" + r.Name
}
