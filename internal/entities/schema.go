package entities

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// CreateSchema creates the entity tables and their lookup indexes when they
// do not exist yet.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", model, err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*Issue)(nil), "issues_project_iid_idx", []string{"project_id", "iid"}},
		{(*MergeRequest)(nil), "merge_requests_project_iid_idx", []string{"project_id", "iid"}},
		{(*Milestone)(nil), "milestones_project_iid_idx", []string{"project_id", "iid"}},
		{(*Commit)(nil), "commits_project_sha_idx", []string{"project_id", "sha"}},
		{(*ProjectMember)(nil), "project_members_project_user_idx", []string{"project_id", "user_id"}},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			Unique().
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
