package domain_test

import (
	"errors"
	"fmt"
	"sourcemind/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepositoryIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    domain.RepositoryIdentifier
		wantErr bool
	}{
		{name: "simple", input: "octocat/Hello-World", want: domain.RepositoryIdentifier{Owner: "octocat", Name: "Hello-World"}},
		{name: "surrounding whitespace", input: "  golang/go \n", want: domain.RepositoryIdentifier{Owner: "golang", Name: "go"}},
		{name: "no separator", input: "octocat", wantErr: true},
		{name: "two separators", input: "a/b/c", wantErr: true},
		{name: "empty owner", input: "/repo", wantErr: true},
		{name: "empty name", input: "owner/", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := domain.ParseRepositoryIdentifier(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				assert.Equal(t, "Please format as 'owner/repo'", err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Owner+"/"+tt.want.Name, got.String())
		})
	}
}

func TestErrorKindMatching(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := fmt.Errorf("fetching: %w", domain.NewUpstreamError(502, "GitHub API Error: 502 Bad Gateway", cause))

	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	assert.Equal(t, "GitHub API Error: 502 Bad Gateway", domain.UserMessage(err))
	assert.Contains(t, domain.Describe(err), "status 502")

	var typed *domain.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, 502, typed.Status)
}

func TestUntypedErrorsAreUnexpected(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	assert.Equal(t, domain.KindUnexpected, domain.KindOf(err))
	assert.Equal(t, "An unexpected error occurred during analysis.", domain.UserMessage(err))
	assert.Equal(t, domain.ErrorKind(""), domain.KindOf(nil))
}

func TestLanguageBreakdownShares(t *testing.T) {
	t.Parallel()

	b := domain.LanguageBreakdown{"Shell": 100, "Go": 900}
	shares := b.Shares()

	require.Len(t, shares, 2)
	assert.Equal(t, "Go", shares[0].Language)
	assert.InDelta(t, 90.0, shares[0].Percent, 0.001)
	assert.Equal(t, "Shell", shares[1].Language)
	assert.InDelta(t, 10.0, shares[1].Percent, 0.001)
	assert.Equal(t, int64(1000), b.Total())

	assert.Empty(t, domain.LanguageBreakdown{}.Shares())
}
