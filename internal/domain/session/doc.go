// Package session manages ephemeral upload workspaces.
//
// Each session owns one directory under the configured base directory. Files
// uploaded into a session are stored as "<fileID>_<sanitized name>" so that names
// never collide and the id can be recovered from a directory listing.
//
// Lifecycle:
//   - Created explicitly with Create, or lazily on first reference (get-or-create)
//   - Mutated by AddFile and RemoveFile
//   - Destroyed by EndSession or by SweepExpired once older than the TTL
//
// Sessions are an in-memory table. A process restart forgets every session and
// NewManager reclaims the workspaces a previous process left behind.
//
// Concurrency:
//   - Every session has its own mutex; operations on different sessions never wait
//     on each other
//   - SweepExpired uses TryLock and skips sessions that are mid-mutation
//
// Example Usage:
//
//	mgr, err := session.NewManager(session.DefaultConfig(), logger)
//	sid, err := mgr.Create(ctx)
//	entry, err := mgr.AddFile(ctx, sid, session.IncomingFile{Name: "notes.txt", Reader: r, Size: -1})
//	files, err := mgr.ListFiles(ctx, sid)
//	removed, err := mgr.EndSession(ctx, sid)
package session
