package entities_test

import (
	"context"
	"errors"
	"testing"
	"time"

	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-gfm/internal/entities"
	"github.com/goliatone/go-gfm/pkg/interfaces"
	"github.com/goliatone/go-gfm/pkg/testsupport"
)

func newBunRepository(t *testing.T) *entities.BunRepository {
	t.Helper()

	sqlDB, err := testsupport.NewSQLiteMemoryDB()
	if err != nil {
		t.Fatalf("new sqlite db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	bunDB.SetMaxOpenConns(1)
	if err := entities.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	cacheCfg := repocache.DefaultConfig()
	cacheCfg.TTL = time.Minute
	cacheSvc, err := repocache.NewCacheService(cacheCfg)
	if err != nil {
		t.Fatalf("cache service: %v", err)
	}
	return entities.NewBunRepositoryWithCache(bunDB, cacheSvc, repocache.NewDefaultKeySerializer())
}

func TestBunRepositoryWithCache(t *testing.T) {
	ctx := context.Background()
	repo := newBunRepository(t)
	svc := entities.NewService(repo, entities.WithNow(func() time.Time { return fixedNow }))
	issue := seed(t, svc)
	entityID := entities.EntityID(interfaces.ReferenceIssue, issue.ID)

	if _, err := svc.CreateIssue(ctx, entities.CreateItemInput{Project: "acme/web", Title: "Next"}); err != nil {
		t.Fatalf("create next issue: %v", err)
	}
	next, err := repo.MaxIID(ctx, interfaces.ReferenceIssue, issue.ProjectID)
	if err != nil || next != 43 {
		t.Fatalf("expected max iid 43, got %d (%v)", next, err)
	}

	lookup := entities.NewLookup(repo)
	for i := 0; i < 2; i++ {
		found, err := lookup.Find(ctx, acmeWeb, interfaces.ReferenceIssue, "42")
		if err != nil {
			t.Fatalf("find issue (pass %d): %v", i, err)
		}
		if found.ID != entityID {
			t.Fatalf("unexpected entity %+v", found)
		}
	}

	if _, err := svc.UpdateField(ctx, entityID, entities.FieldTitle, "Crash on save (v2)"); err != nil {
		t.Fatalf("update field: %v", err)
	}
	title, err := svc.FieldText(ctx, entityID, entities.FieldTitle)
	if err != nil {
		t.Fatalf("field text: %v", err)
	}
	if title != "Crash on save (v2)" {
		t.Fatalf("expected cached read to see the update, got %q", title)
	}

	user, err := lookup.Find(ctx, interfaces.ProjectScope{}, interfaces.ReferenceUser, "FRED")
	if err != nil || user.Key != "fred" {
		t.Fatalf("expected case-insensitive user lookup, got %+v (%v)", user, err)
	}

	if err := svc.DeleteItem(ctx, entityID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if _, err := lookup.Find(ctx, acmeWeb, interfaces.ReferenceIssue, "42"); !errors.Is(err, interfaces.ErrEntityNotFound) {
		t.Fatalf("expected deleted issue to be not found, got %v", err)
	}
}

func TestBunRepositoryCommitsAndMembers(t *testing.T) {
	ctx := context.Background()
	repo := newBunRepository(t)
	svc := entities.NewService(repo, entities.WithNow(func() time.Time { return fixedNow }))
	seed(t, svc)

	for _, sha := range []string{"abc1234def5678", "abc1234fff0000"} {
		if _, err := svc.CreateCommit(ctx, entities.CreateCommitInput{Project: "acme/web", SHA: sha, Message: "msg"}); err != nil {
			t.Fatalf("create commit: %v", err)
		}
	}
	project, err := svc.GetProject(ctx, "acme/web")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	commits, err := repo.FindCommits(ctx, project.ID, "abc1234", 2)
	if err != nil {
		t.Fatalf("find commits: %v", err)
	}
	if len(commits) != 2 || commits[0].SHA != "abc1234def5678" {
		t.Fatalf("unexpected commits %+v", commits)
	}
	one, err := repo.FindCommits(ctx, project.ID, "abc1234f", 0)
	if err != nil || len(one) != 1 {
		t.Fatalf("expected one commit, got %d (%v)", len(one), err)
	}

	if _, err := svc.AddMember(ctx, entities.AddMemberInput{Project: "acme/web", Username: "fred", AccessLevel: 40}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	members, err := svc.ListMembers(ctx, "acme/web")
	if err != nil || len(members) != 1 || members[0].AccessLevel != 40 {
		t.Fatalf("unexpected members %+v (%v)", members, err)
	}
}
