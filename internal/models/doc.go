// Package models defines the data shared between the catalog client, the room store and the galaxy.
//
//   - [ArtistRecord] : one artist as returned by the music catalog (id, name, popularity, genre tags)
//   - [Member] : one participant of a group room and their latest artist snapshot
//   - [Room] : a short code and its members in arrival order
//   - [TimeRange] : the catalog's affinity window for top artists
//
// Artist lists are merged with [MergeArtists] (dedupe by id, first occurrence wins) and trimmed with
// [CapArtists]. Request payloads are checked with [Validate].
package models
