// Package selector provides pure, stateless predicate combinators over
// event.Messageable. Each combinator here is a plain
// func(event.Messageable) bool, suitable for scenario.Expect and for
// episode.Next/Cancellable/Tolerate predicates directly.
//
// Where a selector also needs to project out a narrower value (not just
// test the event), it's built from an (isDefined, apply) partial
// function pair instead of exception-based control flow, exposed as the
// Partial type below and consumed by scenario.ExpectAs.
package selector

import (
	"strings"

	"github.com/mikabele/canoe/event"
)

// Partial is a predicate (IsDefined) paired with a projection (Apply)
// that's only safe to call once IsDefined has returned true.
type Partial[T any] struct {
	IsDefined func(event.Messageable) bool
	Apply     func(event.Messageable) T
}

// TextMessage matches any IncomingMessage.
func TextMessage(ev event.Messageable) bool {
	_, is := ev.(event.IncomingMessage)
	return is
}

// DocumentMessage matches an IncomingMessage carrying a Document.
func DocumentMessage(ev event.Messageable) bool {
	m, is := ev.(event.IncomingMessage)
	return is && m.Document != nil
}

// Document projects the Document out of a message that DocumentMessage
// has already accepted.
func Document() Partial[*event.Document] {
	return Partial[*event.Document]{
		IsDefined: DocumentMessage,
		Apply: func(ev event.Messageable) *event.Document {
			return ev.(event.IncomingMessage).Document
		},
	}
}

// Command matches a text message whose text is exactly "/"+name.
func Command(name string) func(event.Messageable) bool {
	want := "/" + name
	return func(ev event.Messageable) bool {
		m, is := ev.(event.IncomingMessage)
		return is && m.Text == want
	}
}

// Containing matches a text message whose text contains s.
func Containing(s string) func(event.Messageable) bool {
	return func(ev event.Messageable) bool {
		m, is := ev.(event.IncomingMessage)
		return is && strings.Contains(m.Text, s)
	}
}

// Callback matches a callback query whose originating message id equals
// messageID.
func Callback(messageID string) func(event.Messageable) bool {
	return func(ev event.Messageable) bool {
		c, is := ev.(event.CallbackQuery)
		return is && c.MessageID == messageID
	}
}

// CallbackData matches a callback query carrying exactly the given data
// payload, regardless of originating message.
func CallbackData(data string) func(event.Messageable) bool {
	return func(ev event.Messageable) bool {
		c, is := ev.(event.CallbackQuery)
		return is && c.Data == data
	}
}

// And combines predicates, matching only when all of them do.
func And(preds ...func(event.Messageable) bool) func(event.Messageable) bool {
	return func(ev event.Messageable) bool {
		for _, p := range preds {
			if !p(ev) {
				return false
			}
		}
		return true
	}
}

// Or combines predicates, matching when any of them does.
func Or(preds ...func(event.Messageable) bool) func(event.Messageable) bool {
	return func(ev event.Messageable) bool {
		for _, p := range preds {
			if p(ev) {
				return true
			}
		}
		return false
	}
}

// Not negates a predicate.
func Not(pred func(event.Messageable) bool) func(event.Messageable) bool {
	return func(ev event.Messageable) bool {
		return !pred(ev)
	}
}
