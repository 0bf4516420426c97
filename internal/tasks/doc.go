// Package tasks runs the group polling loop with real-time progress reporting.
//
// # Polling
//
// [GroupSync.Run] executes one iteration immediately and then one per interval until its context
// is cancelled:
//
//  1. Fetch the listener's top artists from the [services.Catalog]
//  2. Cap them and publish them as this device's member entry
//  3. Read the room back and merge every member's artists, first record wins
//
// Publishing always precedes the read of the same iteration, so a member sees its own latest
// write. There is no push channel; staleness of up to one interval is expected.
//
// # Errors
//
// Iteration failures are logged, reported as [Failed] updates and swallowed. Authentication
// failures stop the loop. A catalog failure degrades to an empty list instead of failing.
//
// # Progress Reporting
//
// Progress updates use select with default to prevent blocking. Merged results wait for the
// receiver but are discarded once the context has been cancelled.
package tasks
