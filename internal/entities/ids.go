package entities

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// EntityID formats the public identifier of a record, e.g.
// "issue:6f1c...". The prefix is the reference kind.
func EntityID(kind interfaces.ReferenceKind, id uuid.UUID) string {
	return string(kind) + ":" + id.String()
}

// ParseEntityID splits an identifier produced by EntityID.
func ParseEntityID(value string) (interfaces.ReferenceKind, uuid.UUID, error) {
	prefix, raw, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return "", uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidEntityID, value)
	}
	kind := interfaces.ReferenceKind(prefix)
	if !kind.Valid() {
		return "", uuid.Nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEntityID, prefix)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidEntityID, err)
	}
	return kind, id, nil
}

func isItemKind(kind interfaces.ReferenceKind) bool {
	switch kind {
	case interfaces.ReferenceIssue, interfaces.ReferenceMergeRequest, interfaces.ReferenceMilestone:
		return true
	}
	return false
}

func formatIID(iid int64) string {
	return strconv.FormatInt(iid, 10)
}
