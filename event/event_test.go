package event

import "testing"

func TestUpdateMessageableProjectsMessageAndCallback(t *testing.T) {
	u := &Update{Message: &Message{ConversationID: "c", Text: "hi"}}
	m, ok := u.Messageable()
	if !ok {
		t.Fatal("expected a projection for a Message update")
	}
	if _, is := m.(IncomingMessage); !is {
		t.Fatalf("got %T, want IncomingMessage", m)
	}

	u = &Update{Callback: &Callback{ConversationID: "c", Data: "yes"}}
	m, ok = u.Messageable()
	if !ok {
		t.Fatal("expected a projection for a Callback update")
	}
	if _, is := m.(CallbackQuery); !is {
		t.Fatalf("got %T, want CallbackQuery", m)
	}
}

func TestUpdateMessageableHasNoProjectionForEditedOrInlineQuery(t *testing.T) {
	u := &Update{Edited: &Message{ConversationID: "c", Text: "hi (edited)"}}
	if _, ok := u.Messageable(); ok {
		t.Fatal("Edited updates should have no Messageable projection")
	}

	u = &Update{InlineQuery: &InlineQuery{Query: "q"}}
	if _, ok := u.Messageable(); ok {
		t.Fatal("InlineQuery updates should have no Messageable projection")
	}
}

func TestNewMessageFillsInID(t *testing.T) {
	m := NewMessage("conv", "sender", "hi")
	if m.ID == "" {
		t.Fatal("expected NewMessage to fill in an ID")
	}
	if m.ConversationID != "conv" || m.SenderID != "sender" || m.Text != "hi" {
		t.Fatalf("got %+v", m)
	}
}
