// Package script compiles a YAML scenario document into a
// scenario.Scenario, evaluating each step's predicates and effects with
// goja, the same ECMAScript embedding interpreters/goja/goja.go uses
// for core.Spec actions, down to the "bindings"/"event" globals exposed
// to each snippet. It additionally exposes a cronNext(expr) builtin
// (github.com/gorhill/cronexpr) for scripts that need to schedule
// around a cron expression, an addition sio/timers.go's polling model
// makes natural here.
//
// Scripted scenarios are necessarily dynamically typed (the document
// format has no way to declare Go type parameters), so Compile always
// yields a Scenario[interface{}], mirroring core.Bindings'
// map[string]interface{} convention.
package script

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
	"github.com/jsccast/yaml"

	"github.com/mikabele/canoe/effect"
	"github.com/mikabele/canoe/event"
	"github.com/mikabele/canoe/scenario"
)

// Step is one node of a scripted scenario document.
type Step struct {
	// Kind selects what this step does: "expect", "eval", or "raise".
	Kind string `yaml:"kind"`

	// When is a boolean goja expression over `event` and `bindings`,
	// used by "expect" steps. Empty means "match any event".
	When string `yaml:"when,omitempty"`

	// Code is a goja expression evaluated for "eval" and "raise"
	// steps ("raise" uses its string result as an error message).
	Code string `yaml:"code,omitempty"`

	// Limit and OnMismatch configure tolerate-on-mismatch retrying.
	// Limit nil with OnMismatch set means unbounded retries.
	Limit      *int   `yaml:"limit,omitempty"`
	OnMismatch string `yaml:"onMismatch,omitempty"`

	// CancelWhen and OnCancel configure early cancellation.
	CancelWhen string `yaml:"cancelWhen,omitempty"`
	OnCancel   string `yaml:"onCancel,omitempty"`

	// Seconds, if positive, imposes a deadline on this step.
	Seconds float64 `yaml:"seconds,omitempty"`

	// Doc documents this step for package render.
	Doc string `yaml:"doc,omitempty"`

	// Next, if set, is sequenced after this step with FlatMap.
	Next *Step `yaml:"next,omitempty"`
}

// Document is a named, documented scenario definition.
type Document struct {
	Name  string `yaml:"name"`
	Doc   string `yaml:"doc,omitempty"`
	Start *Step  `yaml:"start"`
}

// Parse decodes a YAML scenario document.
func Parse(src []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("script: parse: %w", err)
	}
	return &doc, nil
}

// Runtime is the goja environment a compiled Document's steps share.
type Runtime struct {
	vm *goja.Runtime
	// bindings persists across steps within one scenario instance,
	// the same role core.Bindings plays across a Spec's nodes.
	bindings map[string]interface{}
}

// NewRuntime builds a fresh goja runtime with cronNext installed.
func NewRuntime() *Runtime {
	vm := goja.New()
	r := &Runtime{vm: vm, bindings: map[string]interface{}{}}
	vm.Set("cronNext", func(expr string) (int64, error) {
		e, err := cronexpr.Parse(expr)
		if err != nil {
			return 0, fmt.Errorf("cronNext: %w", err)
		}
		return e.Next(time.Now()).Unix(), nil
	})
	return r
}

// eventToMap flattens a Messageable into the same kind of plain
// map[string]interface{} core.Exec hands goja for bindings and props,
// rather than exposing the Go struct directly.
func eventToMap(ev event.Messageable) map[string]interface{} {
	if ev == nil {
		return nil
	}
	m := map[string]interface{}{
		"conversationId": ev.ConversationID(),
		"occurredAt":     ev.OccurredAt(),
	}
	switch v := ev.(type) {
	case event.IncomingMessage:
		m["text"] = v.Text
		m["senderId"] = v.SenderID
		if v.Document != nil {
			m["document"] = map[string]interface{}{
				"fileId":   v.Document.FileID,
				"fileName": v.Document.FileName,
				"mimeType": v.Document.MimeType,
				"size":     v.Document.Size,
			}
		}
	case event.CallbackQuery:
		m["senderId"] = v.SenderID
		m["messageId"] = v.MessageID
		m["data"] = v.Data
	}
	return m
}

func (r *Runtime) setGlobals(ev event.Messageable) {
	r.vm.Set("event", eventToMap(ev))
	r.vm.Set("bindings", r.bindings)
}

func (r *Runtime) evalBool(code string, ev event.Messageable) (bool, error) {
	if code == "" {
		return true, nil
	}
	r.setGlobals(ev)
	v, err := r.vm.RunString(code)
	if err != nil {
		return false, fmt.Errorf("script: %q: %w", code, err)
	}
	return v.ToBoolean(), nil
}

func (r *Runtime) evalValue(code string, ev event.Messageable) (interface{}, error) {
	r.setGlobals(ev)
	v, err := r.vm.RunString(code)
	if err != nil {
		return nil, fmt.Errorf("script: %q: %w", code, err)
	}
	return v.Export(), nil
}

// Compile turns doc into a runnable Scenario. Each call gets its own
// Runtime (and so its own bindings), matching a fresh conversation
// instance each time the matcher restarts the episode.
func Compile(doc *Document) (scenario.Scenario[interface{}], error) {
	if doc.Start == nil {
		return scenario.Scenario[interface{}]{}, fmt.Errorf("script: document %q has no start step", doc.Name)
	}
	return compileStep(NewRuntime(), doc.Start), nil
}

func compileStep(r *Runtime, st *Step) scenario.Scenario[interface{}] {
	s := compileLeaf(r, st)

	if st.OnMismatch != "" {
		onMismatch := st.OnMismatch
		retry := tolerateEffect(r, onMismatch)
		if st.Limit != nil {
			s = s.TolerateN(*st.Limit, retry)
		} else {
			s = s.TolerateAll(retry)
		}
	}

	if st.CancelWhen != "" {
		cancelWhen := st.CancelWhen
		pred := func(ev event.Messageable) bool {
			ok, err := r.evalBool(cancelWhen, ev)
			return err == nil && ok
		}
		if st.OnCancel != "" {
			onCancel := st.OnCancel
			s = s.StopWith(pred, tolerateEffect(r, onCancel))
		} else {
			s = s.StopOn(pred)
		}
	}

	if st.Seconds > 0 {
		s = s.Within(time.Duration(st.Seconds * float64(time.Second)))
	}

	if st.Next != nil {
		next := st.Next
		s = scenario.FlatMap(s, func(interface{}) scenario.Scenario[interface{}] {
			return compileStep(r, next)
		})
	}

	return s
}

func compileLeaf(r *Runtime, st *Step) scenario.Scenario[interface{}] {
	switch st.Kind {
	case "expect":
		when := st.When
		matched := scenario.Expect(func(ev event.Messageable) bool {
			ok, err := r.evalBool(when, ev)
			return err == nil && ok
		})
		s := scenario.Map(matched, func(ev event.Messageable) interface{} { return ev })
		return describeAs(s, st)

	case "eval":
		code := st.Code
		return scenario.Eval[interface{}](effect.IO(func(ctx context.Context) (interface{}, error) {
			return r.evalValue(code, nil)
		}))

	case "raise":
		code := st.Code
		return scenario.Eval[interface{}](effect.IO(func(ctx context.Context) (interface{}, error) {
			msg, err := r.evalValue(code, nil)
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%v", msg)
		}))

	default:
		return scenario.Pure[interface{}](nil)
	}
}

func tolerateEffect(r *Runtime, code string) func(event.Messageable) effect.IO {
	return func(ev event.Messageable) effect.IO {
		return effect.IO(func(ctx context.Context) (interface{}, error) {
			return r.evalValue(code, ev)
		})
	}
}

// describeAs attaches st.Doc to s, if any was given.
func describeAs[A any](s scenario.Scenario[A], st *Step) scenario.Scenario[A] {
	if st.Doc == "" {
		return s
	}
	return s.Describe(st.Doc)
}
