package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_NamingConventionEquivalence(t *testing.T) {
	want := []string{"get", "profile", "user"}

	assert.Equal(t, want, Tokenize("getUserProfile"))
	assert.Equal(t, want, Tokenize("get_user_profile"))
	assert.Equal(t, want, Tokenize("GetUserProfile"))
	assert.Equal(t, want, Tokenize("get-user-profile"))
	assert.Equal(t, want, Tokenize("get user profile"))
}

func TestTokenize_PunctuationStripped(t *testing.T) {
	assert.Equal(t, []string{"profile", "user"}, Tokenize(".user-profile"))
	assert.Equal(t, []string{"open", "store"}, Tokenize("store.Open()"))
}

func TestTokenize_AcronymRuns(t *testing.T) {
	assert.Equal(t, []string{"http", "server"}, Tokenize("HTTPServer"))
	assert.Equal(t, []string{"api", "json", "parse"}, Tokenize("parseJSONApi"))
	assert.Equal(t, []string{"id", "url"}, Tokenize("URLToID"))

	// Short uppercase prefixes are part of the word, not an acronym.
	assert.Equal(t, []string{"sqlite"}, Tokenize("SQLite"))
	assert.Equal(t, []string{"postgre", "sql"}, Tokenize("PostgreSQL"))
}

func TestTokenize_Stopwords(t *testing.T) {
	got := Tokenize("the purpose of the system")
	assert.Equal(t, []string{"purpose", "system"}, got)

	// Identifier fragments are never stripped even when common.
	assert.Contains(t, Tokenize("setValue"), "set")
	assert.Contains(t, Tokenize("getValue"), "get")
}

func TestTokenize_SingleCharacterFragmentsDiscarded(t *testing.T) {
	assert.Equal(t, []string{"point"}, Tokenize("x y point"))
	assert.NotContains(t, Tokenize("aValue"), "a")
}

func TestTokenize_PureAndDeterministic(t *testing.T) {
	in := "We're using Postgres for the main database"
	first := Tokenize(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Tokenize(in))
	}
	assert.Contains(t, first, "database")
	assert.Contains(t, first, "postgres")
	assert.NotContains(t, first, "for")
}

func TestTokenize_UnicodeNormalization(t *testing.T) {
	// Composed é vs e + combining accent must tokenize identically.
	assert.Equal(t, Tokenize("café"), Tokenize("café"))
}

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("...  --- !!"))
}

func TestSet_Intersection(t *testing.T) {
	a := NewSet([]string{"use", "sqlite", "offline", "storage"})
	b := NewSet([]string{"use", "postgresql", "multi", "user", "sync"})

	assert.Equal(t, 1, a.Intersection(b))
	assert.Equal(t, 1, b.Intersection(a), "intersection is symmetric")
}

func TestOverlapCoefficient(t *testing.T) {
	a := NewSet([]string{"use", "sqlite", "offline", "storage"})
	b := NewSet([]string{"use", "postgresql", "multi", "user", "sync"})

	assert.InDelta(t, 0.25, OverlapCoefficient(a, b), 1e-9)
	assert.Zero(t, OverlapCoefficient(a, NewSet(nil)))
}

func TestQueryScore(t *testing.T) {
	cand := NewSet(Tokenize("We're using Postgres for the main database"))
	query := NewSet(Tokenize("database"))

	assert.InDelta(t, 1.0, QueryScore(cand, query), 1e-9)
	assert.Zero(t, QueryScore(cand, NewSet(nil)))

	// Literal overlap only: alias resolution ("pg" → "postgresql") is
	// an optional LLM-assisted enhancement, not a tokenizer guarantee.
	assert.Zero(t, QueryScore(cand, NewSet(Tokenize("pg"))))
}
