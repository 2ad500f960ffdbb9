// Package store implements the goal-tracker data access layer on top of a
// generic [table.Client]. Five stores cover the entity hierarchy:
//
//   - [UserStore]: signup and lookup of user metadata.
//   - [CharacterStore]: RuneScape characters tracked under a user.
//   - [GoalStore]: per-character goals.
//   - [ProgressStore]: append-only progress samples plus denormalized
//     latest/earliest boundary rows.
//   - [NotificationChannelStore]: per-user delivery configurations.
//
// All stores are safe for concurrent use. Every operation either returns a
// valid domain object or a typed failure from the types package:
// validation problems, missing parents, identity collisions, and backend
// unavailability each map to their own error type so callers can decide a
// retry policy.
//
// Clock and ID generation are injectable through [WithClock] and
// [WithIDGenerator] for deterministic tests.
package store
