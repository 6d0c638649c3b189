package episode

import (
	"github.com/mikabele/canoe/effect"
	"github.com/mikabele/canoe/event"
)

// Rewrite walks ep structurally, replacing every Effect it finds (inside
// Eval, Tolerate.OnMismatch, and Cancellable.OnCancel) with transform
// applied to that Effect, so the façade can rewrite the effect
// capability from one carrier to another by walking the IR
// structurally.
//
// Every non-leaf constructor in this IR holds exactly one structural
// child (Prev or Inner); the whole Episode is therefore a chain, not a
// tree. Rewrite exploits that to walk iteratively with an explicit
// stack instead of recursing, since a naive recursive walk can overflow
// on deeply nested flatMap chains.
//
// Continuations (Bind.K, Protected.Recover) produce further Episodes
// only once called at runtime; Rewrite wraps them so that whatever
// Episode they eventually produce is itself rewritten, without forcing
// them early.
func Rewrite(ep Episode, transform func(effect.IO) effect.IO) Episode {
	type frame struct {
		kind int
		node Episode
	}

	const (
		fBind = iota
		fMap
		fProtected
		fTolerate
		fCancellable
		fTimeLimited
	)

	var stack []frame
	cur := ep

	for {
		switch n := cur.(type) {
		case Bind:
			stack = append(stack, frame{fBind, n})
			cur = n.Prev
		case Map:
			stack = append(stack, frame{fMap, n})
			cur = n.Prev
		case Protected:
			stack = append(stack, frame{fProtected, n})
			cur = n.Inner
		case Tolerate:
			stack = append(stack, frame{fTolerate, n})
			cur = n.Inner
		case Cancellable:
			stack = append(stack, frame{fCancellable, n})
			cur = n.Inner
		case TimeLimited:
			stack = append(stack, frame{fTimeLimited, n})
			cur = n.Inner
		default:
			cur = rewriteLeaf(cur, transform)
			goto rebuild
		}
	}

rebuild:
	for i := len(stack) - 1; i >= 0; i-- {
		fr := stack[i]
		switch fr.kind {
		case fBind:
			n := fr.node.(Bind)
			k := n.K
			cur = Bind{
				Prev: cur,
				K: func(v interface{}) Episode {
					return Rewrite(k(v), transform)
				},
			}
		case fMap:
			n := fr.node.(Map)
			cur = Map{Prev: cur, F: n.F}
		case fProtected:
			n := fr.node.(Protected)
			recover := n.Recover
			cur = Protected{
				Inner: cur,
				Recover: func(err error) Episode {
					return Rewrite(recover(err), transform)
				},
			}
		case fTolerate:
			n := fr.node.(Tolerate)
			onMismatch := n.OnMismatch
			cur = Tolerate{
				Inner: cur,
				Limit: n.Limit,
				OnMismatch: func(ev event.Messageable) effect.IO {
					return transform(onMismatch(ev))
				},
			}
		case fCancellable:
			n := fr.node.(Cancellable)
			onCancel := n.OnCancel
			newOnCancel := onCancel
			if onCancel != nil {
				newOnCancel = func(ev event.Messageable) effect.IO {
					return transform(onCancel(ev))
				}
			}
			cur = Cancellable{
				Inner:      cur,
				CancelWhen: n.CancelWhen,
				OnCancel:   newOnCancel,
			}
		case fTimeLimited:
			n := fr.node.(TimeLimited)
			cur = TimeLimited{Inner: cur, Duration: n.Duration}
		}
	}

	return cur
}

func rewriteLeaf(ep Episode, transform func(effect.IO) effect.IO) Episode {
	switch n := ep.(type) {
	case Eval:
		return Eval{Effect: transform(n.Effect)}
	default:
		return ep
	}
}
