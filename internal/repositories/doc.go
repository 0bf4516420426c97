// Package repositories implements SQLite persistence for rooms and device identities.
//
// Key Implementations:
//   - [RoomRepository] : Room records with a sliding expires_at column; satisfies [rooms.Store]
//   - [DeviceRepository] : Named, stable device ids used as group member ids
//
// Writes that read before they write run in a single transaction via [withTx]. Expired rows are
// treated as absent by every query and removed by [RoomRepository.Sweep].
package repositories
