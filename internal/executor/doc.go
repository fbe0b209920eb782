// Package executor implements a concurrent GraphQL executor: given a schema,
// a parsed document and a Runtime that maps schema coordinates to resolvers,
// it produces the {data, errors} result of one operation.
//
// # Overview
//
// Execution is a recursive walk over the selection sets of the operation.
// Each step collects the fields of a selection set for one object type
// (CollectFields), then hands them to an ExecutionStrategy:
//   - ConcurrentStrategy runs every sibling field on its own goroutine and
//     joins them. It is used for queries, for subscription events and for
//     every selection set below the root.
//   - SerialStrategy runs one field after another, starting the next field
//     only when the previous field's whole subtree has completed. It is used
//     for the root fields of mutations.
//
// Regardless of completion order, response maps (ResultMap) keep the order
// of the selection set and lists keep the order of the resolved values.
//
// # Field pipeline
//
// Every field goes through the same stages:
//
//	A. Fetch
//	   - Arguments are coerced (ArgumentValues) and an Environment is built.
//	   - The Runtime resolver for (parent type, field) is called, or the
//	     default PropertyResolver when the runtime has none.
//	   - Awaitable results are awaited on the field's goroutine.
//	   - Errors and panics are handed to the ExceptionHandler and the field
//	     continues as null.
//	   - A FieldResult envelope is opened: its errors are recorded and its
//	     local context replaces the parent's for child fields.
//
//	B. Complete
//	   - null: allowed unless the type is Non-Null.
//	   - list: every element is completed with its own index path.
//	   - scalar/enum: serialized through the scalar's Coercing or the enum's
//	     value names.
//	   - interface/union: the concrete object type is resolved first.
//	   - object: sub-fields are collected and executed with the query
//	     strategy.
//
// # Non-Null propagation
//
// A null at a Non-Null position records one NonNullableFieldWasNullError at
// its own path and rejects the field's future with it. The enclosing object
// or list then becomes null if its own type is nullable, or rejects in turn.
// When the rejection reaches the operation root, data is null. Errors are
// recorded at most once per path, so a propagating null never duplicates the
// error of its origin.
//
// # Deferred fields
//
// A field whose every node carries @defer is not executed inline: it is
// answered with null and queued. ExecutionResult.Deferred runs the queued
// fields and delivers one DeferredPayload per field.
//
// # Instrumentation
//
// When an eventbus.Bus is configured, the executor publishes the events of
// package events for every execution and every field fetch.
package executor
