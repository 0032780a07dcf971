package entitiescmd

import (
	"context"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-gfm/internal/commands"
	"github.com/goliatone/go-gfm/internal/entities"
	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

const (
	updateFieldOperation = "entities.update_field"
	setStateOperation    = "entities.set_state"
	deleteItemOperation  = "entities.delete_item"
)

var (
	_ command.Commander[UpdateFieldCommand] = (*UpdateFieldHandler)(nil)
	_ command.Commander[SetStateCommand]    = (*SetStateHandler)(nil)
	_ command.Commander[DeleteItemCommand]  = (*DeleteItemHandler)(nil)
)

// UpdateFieldHandler stores new field text through entities.Service.
type UpdateFieldHandler struct {
	inner *commands.Handler[UpdateFieldCommand]
}

// NewUpdateFieldHandler creates a handler bound to svc.
func NewUpdateFieldHandler(svc entities.Service, logger interfaces.Logger, opts ...commands.HandlerOption[UpdateFieldCommand]) *UpdateFieldHandler {
	if logger == nil {
		logger = logging.NoOp()
	}
	exec := func(ctx context.Context, msg UpdateFieldCommand) error {
		event, err := svc.UpdateField(ctx, msg.EntityID, msg.Field, msg.Text)
		if err != nil {
			return err
		}
		logging.WithFieldContext(logger, "", msg.EntityID, msg.Field).
			Debug("entities.command.update_field.completed", "sequence", event.Sequence)
		return nil
	}
	handlerOpts := []commands.HandlerOption[UpdateFieldCommand]{
		commands.WithLogger[UpdateFieldCommand](logger),
		commands.WithOperation[UpdateFieldCommand](updateFieldOperation),
	}
	return &UpdateFieldHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

// Execute implements command.Commander.
func (h *UpdateFieldHandler) Execute(ctx context.Context, msg UpdateFieldCommand) error {
	return h.inner.Execute(ctx, msg)
}

// SetStateHandler changes item state.
type SetStateHandler struct {
	inner *commands.Handler[SetStateCommand]
}

func NewSetStateHandler(svc entities.Service, logger interfaces.Logger, opts ...commands.HandlerOption[SetStateCommand]) *SetStateHandler {
	exec := func(ctx context.Context, msg SetStateCommand) error {
		return svc.SetState(ctx, msg.EntityID, msg.State)
	}
	handlerOpts := []commands.HandlerOption[SetStateCommand]{
		commands.WithLogger[SetStateCommand](logger),
		commands.WithOperation[SetStateCommand](setStateOperation),
	}
	return &SetStateHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

func (h *SetStateHandler) Execute(ctx context.Context, msg SetStateCommand) error {
	return h.inner.Execute(ctx, msg)
}

// DeleteItemHandler deletes items.
type DeleteItemHandler struct {
	inner *commands.Handler[DeleteItemCommand]
}

func NewDeleteItemHandler(svc entities.Service, logger interfaces.Logger, opts ...commands.HandlerOption[DeleteItemCommand]) *DeleteItemHandler {
	exec := func(ctx context.Context, msg DeleteItemCommand) error {
		return svc.DeleteItem(ctx, msg.EntityID)
	}
	handlerOpts := []commands.HandlerOption[DeleteItemCommand]{
		commands.WithLogger[DeleteItemCommand](logger),
		commands.WithOperation[DeleteItemCommand](deleteItemOperation),
	}
	return &DeleteItemHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

func (h *DeleteItemHandler) Execute(ctx context.Context, msg DeleteItemCommand) error {
	return h.inner.Execute(ctx, msg)
}
