package entitiescmd

import (
	"errors"

	"github.com/goliatone/go-gfm/internal/commands"
	"github.com/goliatone/go-gfm/internal/entities"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// HandlerSet groups the entity command handlers produced by RegisterEntityCommands.
type HandlerSet struct {
	UpdateField *UpdateFieldHandler
	SetState    *SetStateHandler
	DeleteItem  *DeleteItemHandler
}

// Option customises handler wiring during registration.
type Option func(*options)

type options struct {
	updateFieldOpts []commands.HandlerOption[UpdateFieldCommand]
	setStateOpts    []commands.HandlerOption[SetStateCommand]
	deleteItemOpts  []commands.HandlerOption[DeleteItemCommand]
}

// WithUpdateFieldHandlerOptions forwards options to the UpdateFieldHandler constructor.
func WithUpdateFieldHandlerOptions(opts ...commands.HandlerOption[UpdateFieldCommand]) Option {
	return func(cfg *options) {
		cfg.updateFieldOpts = append(cfg.updateFieldOpts, opts...)
	}
}

// WithSetStateHandlerOptions forwards options to the SetStateHandler constructor.
func WithSetStateHandlerOptions(opts ...commands.HandlerOption[SetStateCommand]) Option {
	return func(cfg *options) {
		cfg.setStateOpts = append(cfg.setStateOpts, opts...)
	}
}

// WithDeleteItemHandlerOptions forwards options to the DeleteItemHandler constructor.
func WithDeleteItemHandlerOptions(opts ...commands.HandlerOption[DeleteItemCommand]) Option {
	return func(cfg *options) {
		cfg.deleteItemOpts = append(cfg.deleteItemOpts, opts...)
	}
}

// RegisterEntityCommands builds the entity command handlers and registers them with reg when it
// is not nil. The HandlerSet is returned so callers can execute commands directly.
func RegisterEntityCommands(reg CommandRegistry, svc entities.Service, provider interfaces.LoggerProvider, opts ...Option) (*HandlerSet, error) {
	if svc == nil {
		return nil, errors.New("entity command registration: service is nil")
	}

	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := commands.CommandLogger(provider, "entities")
	set := &HandlerSet{
		UpdateField: NewUpdateFieldHandler(svc, logger, cfg.updateFieldOpts...),
		SetState:    NewSetStateHandler(svc, logger, cfg.setStateOpts...),
		DeleteItem:  NewDeleteItemHandler(svc, logger, cfg.deleteItemOpts...),
	}

	if reg != nil {
		for _, handler := range []any{set.UpdateField, set.SetState, set.DeleteItem} {
			if err := reg.RegisterCommand(handler); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}
