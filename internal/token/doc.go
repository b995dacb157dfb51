// Package token normalizes identifiers and prose into semantic tokens.
//
// The tokenizer is the identity that unifies decision text, code
// identifiers, and operator queries into one matching space:
//
//	Tokenize("getUserProfile") == Tokenize("get_user_profile") ==
//	Tokenize("GetUserProfile") == {get, user, profile}
//
// It is pure and total: identical input always yields identical output,
// with no configuration lookup at call time. Anything smarter than
// lexical splitting (alias resolution, synonyms) belongs to the
// optional enhance collaborator, never here.
package token
