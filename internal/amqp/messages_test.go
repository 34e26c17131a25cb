package amqp

import (
	"errors"
	"strings"
	"testing"
	"time"

	"kakeibo/internal/core"
)

func TestNewCategoryDeletedMessage(t *testing.T) {
	d := core.DeletedDefaultCategory{UserID: "u1", CategoryName: "交通費", CategoryType: core.Expense}
	a, b := NewCategoryDeletedMessage(d), NewCategoryDeletedMessage(d)

	if a.MessageID == "" || a.MessageID == b.MessageID {
		t.Fatalf("message ids must be unique, got %q and %q", a.MessageID, b.MessageID)
	}
	if time.Since(a.Timestamp) > time.Second || a.Timestamp.Location() != time.UTC {
		t.Errorf("unexpected timestamp %v", a.Timestamp)
	}
	if a.Tombstone() != d {
		t.Errorf("Tombstone() = %+v, want %+v", a.Tombstone(), d)
	}
}

func TestCategoryDeletedMessageWireFormat(t *testing.T) {
	msg := NewCategoryDeletedMessage(core.DeletedDefaultCategory{UserID: "u1", CategoryName: "給与", CategoryType: core.Income})
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"message_id":`, `"category_name":"給与"`, `"category_type":"income"`} {
		if !strings.Contains(string(body), field) {
			t.Errorf("wire format %s lacks %s", body, field)
		}
	}
	parsed, err := CategoryDeletedMessageFromJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.MessageID != msg.MessageID || parsed.Tombstone() != msg.Tombstone() {
		t.Errorf("parsed %+v, want %+v", parsed, msg)
	}
}

func TestCategoryDeletedMessageFromJSONRejects(t *testing.T) {
	bodies := []string{
		`{"user_id": 42}`,
		`not json`,
		`{"user_id":"u1","category_name":"","category_type":"expense"}`,
		`{"user_id":" ","category_name":"食費","category_type":"expense"}`,
		`{"user_id":"u1","category_name":"食費","category_type":"refund"}`,
	}
	for _, body := range bodies {
		if _, err := CategoryDeletedMessageFromJSON([]byte(body)); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("%s: expected ErrInvalidMessage, got %v", body, err)
		}
	}
}
