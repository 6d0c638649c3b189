// Package canoe provides a combinator language and interpreter for
// describing multi-turn conversations against a shared stream of
// incoming events, and a demultiplexer that runs one conversation
// instance per participant concurrently.
//
// See package scenario for the combinator algebra, package episode for
// the underlying IR, package matcher for the interpreter, and package
// demux for routing a shared update stream into many live conversations.
package canoe
