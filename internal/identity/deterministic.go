package identity

import (
	"strconv"
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Callers must ensure key construction prevents cross-entity collisions (prefix by domain/type).
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

func ProjectUUID(fullPath string) uuid.UUID {
	return UUID("go-gfm:project:" + strings.ToLower(strings.Trim(strings.TrimSpace(fullPath), "/")))
}

func UserUUID(username string) uuid.UUID {
	return UUID("go-gfm:user:" + strings.ToLower(strings.TrimSpace(username)))
}

func MemberUUID(projectID, userID uuid.UUID) uuid.UUID {
	return UUID("go-gfm:member:" + projectID.String() + ":" + userID.String())
}

// ItemUUID identifies a project-scoped item such as an issue by its
// per-project number.
func ItemUUID(kind string, projectID uuid.UUID, iid int64) uuid.UUID {
	return UUID("go-gfm:" + kind + ":" + projectID.String() + ":" + strconv.FormatInt(iid, 10))
}

func CommitUUID(projectID uuid.UUID, sha string) uuid.UUID {
	return UUID("go-gfm:commit:" + projectID.String() + ":" + strings.ToLower(strings.TrimSpace(sha)))
}
