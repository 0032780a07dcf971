package entitiescmd

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-gfm/internal/entities"
)

const (
	updateFieldMessageType = "gfm.entities.update_field"
	setStateMessageType    = "gfm.entities.set_state"
	deleteItemMessageType  = "gfm.entities.delete_item"
)

// UpdateFieldCommand replaces the raw text of one entity field. Live
// subscribers of the field re-render once it is stored.
type UpdateFieldCommand struct {
	EntityID string `json:"entity_id"`
	Field    string `json:"field"`
	Text     string `json:"text"`
}

// Type implements command.Message.
func (UpdateFieldCommand) Type() string { return updateFieldMessageType }

// Validate checks the target field before handlers execute.
func (cmd UpdateFieldCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.EntityID, validation.Required, validation.By(entityID)),
		validation.Field(&cmd.Field, validation.Required, validation.In(entities.FieldTitle, entities.FieldDescription)),
		validation.Field(&cmd.Text, validation.When(cmd.Field == entities.FieldTitle, validation.Required)),
	)
}

// SetStateCommand opens, closes or merges an item.
type SetStateCommand struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

// Type implements command.Message.
func (SetStateCommand) Type() string { return setStateMessageType }

func (cmd SetStateCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.EntityID, validation.Required, validation.By(entityID)),
		validation.Field(&cmd.State, validation.Required, validation.In(entities.StateOpened, entities.StateClosed, entities.StateMerged)),
	)
}

// DeleteItemCommand removes an issue, merge request or milestone.
// References to it stop linking on the next render.
type DeleteItemCommand struct {
	EntityID string `json:"entity_id"`
}

// Type implements command.Message.
func (DeleteItemCommand) Type() string { return deleteItemMessageType }

func (cmd DeleteItemCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.EntityID, validation.Required, validation.By(entityID)),
	)
}

func entityID(value any) error {
	raw, _ := value.(string)
	if _, _, err := entities.ParseEntityID(raw); err != nil {
		return validation.NewError("gfm.entities.entity_id_invalid", "must be a kind:uuid entity id")
	}
	return nil
}
