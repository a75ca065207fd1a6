package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"filechat/internal/core"
)

// ErrMalformedHistory is returned (wrapped) when the history field cannot be used.
var ErrMalformedHistory = errors.New("malformed history")

// ParseHistory reads the client-supplied history field. An empty field is an
// empty history. Malformed input also yields an empty history, together with
// a non-nil error the caller is expected to report as a warning rather than
// fail on. Items are read leniently: "text" is accepted when "content" is
// absent, and non-object items are skipped (the remaining turns are kept and
// the skip is reported through the error).
func ParseHistory(raw string) ([]core.Turn, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedHistory)
	}

	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: expected a JSON array, got %s", ErrMalformedHistory, parsed.Type)
	}

	items := parsed.Array()
	turns := make([]core.Turn, 0, len(items))
	skipped := 0
	for _, item := range items {
		if !item.IsObject() {
			skipped++
			continue
		}
		content := item.Get("content")
		if !content.Exists() {
			content = item.Get("text")
		}
		turns = append(turns, core.Turn{
			Role:    item.Get("role").String(),
			Content: content.String(),
		})
	}

	if skipped > 0 {
		return turns, fmt.Errorf("%w: skipped %d non-object entries", ErrMalformedHistory, skipped)
	}
	return turns, nil
}

// MapRole maps a client role to the provider's two-role vocabulary.
func MapRole(role string) string {
	if role == core.RoleUser {
		return core.RoleUser
	}
	return core.RoleModel
}

// MapHistory maps every turn's role with MapRole.
func MapHistory(history []core.Turn) []core.Turn {
	mapped := make([]core.Turn, len(history))
	for i, t := range history {
		mapped[i] = core.Turn{Role: MapRole(t.Role), Content: t.Content}
	}
	return mapped
}
