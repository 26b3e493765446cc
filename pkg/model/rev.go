package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Rev is a parsed revision identifier of the form "<generation>-<token>".
// Generation 1 has no parent. Tokens are opaque; uniqueness is only relied
// upon within a single document's lineage.
type Rev struct {
	Generation int
	Token      string
}

func (r Rev) String() string {
	return strconv.Itoa(r.Generation) + "-" + r.Token
}

// ParseRev parses a revision string. The generation must be a positive
// decimal integer and the token must be non-empty.
func ParseRev(s string) (Rev, error) {
	gen, token, ok := strings.Cut(s, "-")
	if !ok || token == "" {
		return Rev{}, fmt.Errorf("%w: %q", ErrBadRevision, s)
	}
	n, err := strconv.Atoi(gen)
	if err != nil || n < 1 {
		return Rev{}, fmt.Errorf("%w: %q", ErrBadRevision, s)
	}
	return Rev{Generation: n, Token: token}, nil
}

// NextRev produces the successor of parent, or a generation-1 revision when
// parent is empty.
func NextRev(parent string) (string, error) {
	if parent == "" {
		return Rev{Generation: 1, Token: newToken()}.String(), nil
	}
	r, err := ParseRev(parent)
	if err != nil {
		return "", err
	}
	return Rev{Generation: r.Generation + 1, Token: newToken()}.String(), nil
}

// Generation returns the numeric generation of a revision string, or an
// error if it is malformed. Comparison of revisions is always numeric,
// never lexicographic.
func Generation(rev string) (int, error) {
	r, err := ParseRev(rev)
	if err != nil {
		return 0, err
	}
	return r.Generation, nil
}

func newToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
