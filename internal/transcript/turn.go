// Package transcript reads the chat widget transcript out of a page as an
// ordered sequence of role-tagged turns.
package transcript

import (
	"strings"
	"unicode"
)

// Role identifies who authored a chat turn.
type Role string

const (
	// RoleUser marks a turn written by the visitor.
	RoleUser Role = "user"
	// RoleBot marks a turn written by the chatbot.
	RoleBot Role = "bot"
	// RoleUnknown marks a turn whose role attribute matched no known token.
	RoleUnknown Role = "unknown"
)

// ChatTurn is one message of the transcript, in DOM order.
type ChatTurn struct {
	Role  Role   `json:"role"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// Normalize trims s and collapses internal whitespace runs to a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// LastIndex returns the index of the last turn with the given role, or -1.
func LastIndex(turns []ChatTurn, role Role) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == role {
			return i
		}
	}

	return -1
}

// BotRepliesAfter returns the bot turns that appear after index from.
func BotRepliesAfter(turns []ChatTurn, from int) []ChatTurn {
	var replies []ChatTurn

	for i := from + 1; i < len(turns); i++ {
		if turns[i].Role == RoleBot {
			replies = append(replies, turns[i])
		}
	}

	return replies
}

// RoleClassifier maps role attribute values onto roles.
type RoleClassifier struct {
	user map[string]struct{}
	bot  map[string]struct{}
}

// NewRoleClassifier builds a classifier from the user and bot token lists.
// Tokens are matched case-insensitively.
func NewRoleClassifier(userTokens, botTokens []string) RoleClassifier {
	return RoleClassifier{
		user: tokenSet(userTokens),
		bot:  tokenSet(botTokens),
	}
}

// Classify splits value on whitespace, '-' and '_' and returns the role of
// the first recognised token.
func (c RoleClassifier) Classify(value string) Role {
	tokens := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})

	for _, token := range tokens {
		if _, ok := c.bot[token]; ok {
			return RoleBot
		}

		if _, ok := c.user[token]; ok {
			return RoleUser
		}
	}

	return RoleUnknown
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[strings.ToLower(strings.TrimSpace(token))] = struct{}{}
	}

	return set
}
