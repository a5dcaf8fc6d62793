// Package engine defines the core types shared across the fetch pipeline and
// the contracts the worker loop depends on: the durable URL queue store and
// the HTTP fetcher. Both contracts have exactly one production implementation;
// the interfaces exist so tests can substitute doubles.
package engine
