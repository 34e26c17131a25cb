package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/core"
)

// RoutingKeyCategoryDeleted routes deleted default category events.
const RoutingKeyCategoryDeleted = "category.deleted"

// ErrInvalidMessage marks a payload that can never be processed. Such
// deliveries are dropped instead of requeued.
var ErrInvalidMessage = errors.New("invalid category deleted message")

// CategoryDeletedMessage announces that a user deleted a default category.
// The worker turns it into a tombstone row.
type CategoryDeletedMessage struct {
	MessageID    string    `json:"message_id"`
	UserID       string    `json:"user_id"`
	CategoryName string    `json:"category_name"`
	CategoryType string    `json:"category_type"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewCategoryDeletedMessage(d core.DeletedDefaultCategory) *CategoryDeletedMessage {
	return &CategoryDeletedMessage{
		MessageID:    uuid.NewString(),
		UserID:       d.UserID,
		CategoryName: d.CategoryName,
		CategoryType: d.CategoryType.String(),
		Timestamp:    time.Now().UTC(),
	}
}

func (m *CategoryDeletedMessage) Tombstone() core.DeletedDefaultCategory {
	return core.DeletedDefaultCategory{
		UserID:       m.UserID,
		CategoryName: m.CategoryName,
		CategoryType: core.TransactionType(m.CategoryType),
	}
}

// Validate checks the fields a tombstone needs.
func (m *CategoryDeletedMessage) Validate() error {
	switch {
	case strings.TrimSpace(m.UserID) == "":
		return fmt.Errorf("%w: missing user_id", ErrInvalidMessage)
	case strings.TrimSpace(m.CategoryName) == "":
		return fmt.Errorf("%w: missing category_name", ErrInvalidMessage)
	case !core.TransactionType(m.CategoryType).Valid():
		return fmt.Errorf("%w: category_type %q", ErrInvalidMessage, m.CategoryType)
	}
	return nil
}

func (m *CategoryDeletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CategoryDeletedMessageFromJSON decodes and validates a delivery body.
func CategoryDeletedMessageFromJSON(data []byte) (*CategoryDeletedMessage, error) {
	var msg CategoryDeletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
