package entitiescmd_test

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	entitiescmd "github.com/goliatone/go-gfm/internal/commands/entities"
	"github.com/goliatone/go-gfm/internal/entities"
	"github.com/goliatone/go-gfm/internal/live"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

func seedIssue(t *testing.T, svc entities.Service) string {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.CreateProject(ctx, entities.CreateProjectInput{Namespace: "acme", Path: "web"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	issue, err := svc.CreateIssue(ctx, entities.CreateItemInput{Project: "acme/web", IID: 42, Title: "Crash on save"})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	return entities.EntityID(interfaces.ReferenceIssue, issue.ID)
}

func TestUpdateFieldCommandValidate(t *testing.T) {
	valid := entities.EntityID(interfaces.ReferenceIssue, uuid.New())
	cases := []struct {
		name string
		cmd  entitiescmd.UpdateFieldCommand
		ok   bool
	}{
		{"valid description", entitiescmd.UpdateFieldCommand{EntityID: valid, Field: "description", Text: ""}, true},
		{"valid title", entitiescmd.UpdateFieldCommand{EntityID: valid, Field: "title", Text: "x"}, true},
		{"empty title", entitiescmd.UpdateFieldCommand{EntityID: valid, Field: "title"}, false},
		{"unknown field", entitiescmd.UpdateFieldCommand{EntityID: valid, Field: "labels", Text: "x"}, false},
		{"bad id", entitiescmd.UpdateFieldCommand{EntityID: "issue-1", Field: "title", Text: "x"}, false},
	}
	for _, tc := range cases {
		err := tc.cmd.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestUpdateFieldHandlerPublishes(t *testing.T) {
	ctx := context.Background()
	broker := live.NewBroker()
	svc := entities.NewService(entities.NewMemoryRepository(), entities.WithPublisher(broker))
	entityID := seedIssue(t, svc)

	stream, err := broker.Subscribe(ctx, entityID, entities.FieldDescription)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stream.Close()

	handler := entitiescmd.NewUpdateFieldHandler(svc, nil)
	if err := handler.Execute(ctx, entitiescmd.UpdateFieldCommand{EntityID: entityID, Field: "description", Text: "fix #42 and update"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	event := <-stream.Events()
	if event.Text != "fix #42 and update" || event.Sequence != 1 {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestHandlersTagErrors(t *testing.T) {
	ctx := context.Background()
	svc := entities.NewService(entities.NewMemoryRepository())
	entityID := seedIssue(t, svc)

	err := entitiescmd.NewUpdateFieldHandler(svc, nil).Execute(ctx, entitiescmd.UpdateFieldCommand{EntityID: "nope", Field: "title", Text: "x"})
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}

	err = entitiescmd.NewSetStateHandler(svc, nil).Execute(ctx, entitiescmd.SetStateCommand{EntityID: entityID, State: entities.StateMerged})
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) || !errors.Is(err, entities.ErrUnsupportedField) {
		t.Fatalf("expected tagged execution error, got %v", err)
	}

	deleter := entitiescmd.NewDeleteItemHandler(svc, nil)
	if err := deleter.Execute(ctx, entitiescmd.DeleteItemCommand{EntityID: entityID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = deleter.Execute(ctx, entitiescmd.DeleteItemCommand{EntityID: entityID})
	if !errors.Is(err, interfaces.ErrEntityNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
