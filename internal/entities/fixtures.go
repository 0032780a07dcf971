package entities

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Fixtures is a YAML seed document for the entity store.
//
//	projects:
//	  - {namespace: acme, path: web}
//	users:
//	  - {username: fred, name: Fred}
//	issues:
//	  - {project: acme/web, iid: 42, title: Crash on save}
type Fixtures struct {
	Projects      []CreateProjectInput `yaml:"projects"`
	Users         []CreateUserInput    `yaml:"users"`
	Members       []AddMemberInput     `yaml:"members"`
	Issues        []CreateItemInput    `yaml:"issues"`
	MergeRequests []CreateItemInput    `yaml:"merge_requests"`
	Milestones    []CreateItemInput    `yaml:"milestones"`
	Commits       []CreateCommitInput  `yaml:"commits"`
}

// ParseFixtures decodes a fixtures document.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var fixtures Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("entities: parse fixtures: %w", err)
	}
	return &fixtures, nil
}

// Apply creates every record in dependency order.
func (f *Fixtures) Apply(ctx context.Context, svc Service) error {
	if f == nil {
		return nil
	}
	for i, input := range f.Projects {
		if _, err := svc.CreateProject(ctx, input); err != nil {
			return fmt.Errorf("fixture project %d: %w", i, err)
		}
	}
	for i, input := range f.Users {
		if _, err := svc.CreateUser(ctx, input); err != nil {
			return fmt.Errorf("fixture user %d: %w", i, err)
		}
	}
	for i, input := range f.Members {
		if _, err := svc.AddMember(ctx, input); err != nil {
			return fmt.Errorf("fixture member %d: %w", i, err)
		}
	}
	for i, input := range f.Issues {
		if _, err := svc.CreateIssue(ctx, input); err != nil {
			return fmt.Errorf("fixture issue %d: %w", i, err)
		}
	}
	for i, input := range f.MergeRequests {
		if _, err := svc.CreateMergeRequest(ctx, input); err != nil {
			return fmt.Errorf("fixture merge request %d: %w", i, err)
		}
	}
	for i, input := range f.Milestones {
		if _, err := svc.CreateMilestone(ctx, input); err != nil {
			return fmt.Errorf("fixture milestone %d: %w", i, err)
		}
	}
	for i, input := range f.Commits {
		if _, err := svc.CreateCommit(ctx, input); err != nil {
			return fmt.Errorf("fixture commit %d: %w", i, err)
		}
	}
	return nil
}
