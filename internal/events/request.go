// Package events carries notification requests between services over Kafka.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/01moynul/projecthub-golang/internal/models"
)

// ErrInvalidRequest marks messages that can never be processed.
var ErrInvalidRequest = errors.New("invalid notification request")

// Request asks the notification service to notify one recipient.
type Request struct {
	RecipientID string                  `json:"recipientId" validate:"required,email"`
	Type        models.NotificationType `json:"type" validate:"required,notification_type"`
	Title       string                  `json:"title" validate:"required,max=255"`
	Message     string                  `json:"message" validate:"max=4000"`
	Project     *models.ProjectRef      `json:"project,omitempty"`
	Task        *models.TaskRef         `json:"task,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notification_type", func(fl validator.FieldLevel) bool {
		return models.NotificationType(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks r against its field rules.
func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// DecodeRequest parses and validates one message value.
func DecodeRequest(value []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(value, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
