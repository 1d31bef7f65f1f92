// Package events contains event sinks the registry can notify of committed claims:
// a logging sink, a fan-out broadcaster for in-process subscribers and a sink combinator.
package events
