package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Bloom/backend/internal/shared/errs"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/id"
	"github.com/GriffinCanCode/Bloom/backend/internal/shared/utils"
)

// workspace is the table row for one live session.
type workspace struct {
	mu        sync.Mutex
	id        id.SessionID
	dir       string
	createdAt time.Time
	files     map[id.FileID]*FileEntry
	closed    bool
}

// Manager owns every session workspace and the files inside them.
type Manager struct {
	cfg     Config
	logger  *zap.Logger
	metrics Recorder
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[id.SessionID]*workspace
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, used by tests to age sessions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics attaches a lifecycle recorder.
func WithMetrics(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// NewManager creates the base directory and reclaims workspaces left by a previous
// process.
func NewManager(cfg Config, logger *zap.Logger, opts ...Option) (*Manager, error) {
	defaults := DefaultConfig()
	if cfg.BaseDir == "" {
		cfg.BaseDir = defaults.BaseDir
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaults.MaxFileSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		cfg:      cfg,
		logger:   logger.Named("session"),
		metrics:  nopRecorder{},
		now:      time.Now,
		sessions: make(map[id.SessionID]*workspace),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := os.MkdirAll(cfg.BaseDir, 0o750); err != nil {
		return nil, errs.Storage("failed to create base session directory", err)
	}
	m.reclaimOrphans()

	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// reclaimOrphans removes session directories that no live session owns.
func (m *Manager) reclaimOrphans() {
	entries, err := os.ReadDir(m.cfg.BaseDir)
	if err != nil {
		m.logger.Warn("Failed to scan base directory", zap.Error(err))
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := id.ParseSessionID(entry.Name()); err != nil {
			continue
		}
		path := filepath.Join(m.cfg.BaseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn("Failed to reclaim orphaned workspace", zap.String("path", path), zap.Error(err))
			continue
		}
		m.logger.Info("Reclaimed orphaned workspace", zap.String("session_id", entry.Name()))
	}
}

// Create sweeps expired sessions and allocates a fresh workspace.
func (m *Manager) Create(ctx context.Context) (id.SessionID, error) {
	m.SweepExpired(ctx)

	sid := id.NewSessionID()
	if _, err := m.getOrCreate(sid); err != nil {
		return "", err
	}
	return sid, nil
}

// Get returns a snapshot of a live session.
func (m *Manager) Get(sid id.SessionID) (Session, bool) {
	m.mu.RLock()
	ws, ok := m.sessions[sid]
	m.mu.RUnlock()
	if !ok {
		return Session{}, false
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return Session{}, false
	}
	return Session{ID: ws.id, Dir: ws.dir, CreatedAt: ws.createdAt, FileCount: len(ws.files)}, true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) workspacePath(sid id.SessionID) string {
	return filepath.Join(m.cfg.BaseDir, string(sid))
}

// getOrCreate looks up a session, materializing its workspace on first reference.
func (m *Manager) getOrCreate(sid id.SessionID) (*workspace, error) {
	m.mu.RLock()
	ws, ok := m.sessions[sid]
	m.mu.RUnlock()
	if ok {
		return ws, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ws, ok := m.sessions[sid]; ok {
		return ws, nil
	}

	dir := m.workspacePath(sid)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errs.Storage("failed to create session workspace", err)
	}

	ws = &workspace{
		id:        sid,
		dir:       dir,
		createdAt: m.now(),
		files:     make(map[id.FileID]*FileEntry),
	}
	m.sessions[sid] = ws
	m.metrics.SessionOpened()
	m.logger.Debug("Session workspace created", zap.String("session_id", string(sid)))

	return ws, nil
}

// acquire returns the locked workspace for sid. The caller must unlock it.
func (m *Manager) acquire(ctx context.Context, sid id.SessionID) (*workspace, error) {
	parsed, err := id.ParseSessionID(string(sid))
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "no session could be resolved", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ws, err := m.getOrCreate(parsed)
		if err != nil {
			return nil, err
		}

		ws.mu.Lock()
		if !ws.closed {
			return ws, nil
		}
		// Ended or swept between lookup and lock; the next lookup materializes a
		// fresh workspace.
		ws.mu.Unlock()
	}
}

// AddFile stores an upload in the session workspace.
func (m *Manager) AddFile(ctx context.Context, sid id.SessionID, in IncomingFile) (*FileEntry, error) {
	if in.Reader == nil {
		m.metrics.FileRejected("missing")
		return nil, errs.Validation("no file provided")
	}

	name := utils.SanitizeFilename(in.Name)
	if name == "" {
		m.metrics.FileRejected("filename")
		return nil, errs.Validation("invalid filename %q", in.Name)
	}

	if in.Size > m.cfg.MaxFileSize {
		m.metrics.FileRejected("size")
		return nil, m.sizeError()
	}

	ws, err := m.acquire(ctx, sid)
	if err != nil {
		return nil, err
	}
	defer ws.mu.Unlock()

	info, err := os.Stat(ws.dir)
	if err == nil && !info.IsDir() {
		err = fmt.Errorf("%s is not a directory", ws.dir)
	}
	if err != nil {
		m.logger.Warn("Session workspace missing",
			zap.String("session_id", string(ws.id)),
			zap.String("dir", ws.dir),
			zap.Error(err),
		)
		return nil, errs.Storage("session workspace does not exist", err)
	}

	tmp, err := os.CreateTemp(ws.dir, tempPattern)
	if err != nil {
		return nil, errs.Storage("session directory is not writable", err)
	}
	tmpPath := tmp.Name()

	written, copyErr := io.Copy(tmp, io.LimitReader(&contextReader{ctx: ctx, r: in.Reader}, m.cfg.MaxFileSize+1))
	closeErr := tmp.Close()

	switch {
	case copyErr != nil:
		os.Remove(tmpPath)
		return nil, errs.Storage(fmt.Sprintf("error saving file %s", name), copyErr)
	case closeErr != nil:
		os.Remove(tmpPath)
		return nil, errs.Storage(fmt.Sprintf("error saving file %s", name), closeErr)
	case written > m.cfg.MaxFileSize:
		os.Remove(tmpPath)
		m.metrics.FileRejected("size")
		return nil, m.sizeError()
	}

	fid := id.NewFileID()
	stored := string(fid) + "_" + name
	path := filepath.Join(ws.dir, stored)
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, errs.Storage(fmt.Sprintf("failed to save file %s", name), err)
	}

	entry := &FileEntry{
		ID:           fid,
		OriginalName: in.Name,
		StoredName:   stored,
		Size:         written,
		ContentType:  detectType(path),
		ClaimedType:  in.ContentType,
		Path:         path,
	}
	ws.files[fid] = entry
	m.metrics.FileStored(written)

	m.logger.Debug("File stored",
		zap.String("session_id", string(ws.id)),
		zap.String("file_id", string(fid)),
		zap.Int64("size", written),
		zap.String("type", entry.ContentType),
	)

	out := *entry
	return &out, nil
}

func (m *Manager) sizeError() error {
	return errs.Validation("file size exceeds maximum limit of %dMB", m.cfg.MaxFileSize/(1024*1024))
}

// RemoveFile deletes the first stored file whose name starts with fileID.
func (m *Manager) RemoveFile(ctx context.Context, sid id.SessionID, fileID string) (bool, error) {
	if err := utils.ValidateFileID(fileID); err != nil {
		return false, errs.Wrap(errs.KindValidation, "invalid file id", err)
	}

	ws, err := m.acquire(ctx, sid)
	if err != nil {
		return false, err
	}
	defer ws.mu.Unlock()

	stored, err := ws.findByPrefix(fileID)
	if err != nil {
		return false, err
	}
	if stored == "" {
		return false, nil
	}

	if err := os.Remove(filepath.Join(ws.dir, stored)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errs.Storage("failed to remove file", err)
	}

	if fid, _, ok := splitStoredName(stored); ok {
		delete(ws.files, fid)
	}
	return true, nil
}

// ListFiles rebuilds file metadata by scanning the workspace.
func (m *Manager) ListFiles(ctx context.Context, sid id.SessionID) ([]FileMetadata, error) {
	ws, err := m.acquire(ctx, sid)
	if err != nil {
		return nil, err
	}
	defer ws.mu.Unlock()

	names, err := ws.storedNames()
	if err != nil {
		return nil, err
	}

	files := make([]FileMetadata, 0, len(names))
	for _, stored := range names {
		fid, original, ok := splitStoredName(stored)
		if !ok {
			continue
		}
		path := filepath.Join(ws.dir, stored)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		uploaded, _ := id.Timestamp(fid)
		files = append(files, FileMetadata{
			ID:         fid,
			Filename:   original,
			Size:       info.Size(),
			Type:       detectType(path),
			UploadedAt: uploaded,
		})
	}
	return files, nil
}

// ReadFile returns the bytes and entry of a stored file. The read happens under
// the session lock, so it cannot interleave with a removal.
func (m *Manager) ReadFile(ctx context.Context, sid id.SessionID, fileID string) ([]byte, *FileEntry, error) {
	if err := utils.ValidateFileID(fileID); err != nil {
		return nil, nil, errs.Wrap(errs.KindValidation, "invalid file id", err)
	}

	ws, err := m.acquire(ctx, sid)
	if err != nil {
		return nil, nil, err
	}
	defer ws.mu.Unlock()

	entry, ok := ws.files[id.FileID(fileID)]
	if !ok {
		stored, err := ws.findByPrefix(fileID)
		if err != nil {
			return nil, nil, err
		}
		if stored == "" {
			return nil, nil, errs.Validation("file %s not found in session", fileID)
		}
		fid, original, _ := splitStoredName(stored)
		path := filepath.Join(ws.dir, stored)
		entry = &FileEntry{ID: fid, OriginalName: original, StoredName: stored, Path: path, ContentType: detectType(path)}
	}

	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, nil, errs.Storage("failed to read stored file", err)
	}

	out := *entry
	out.Size = int64(len(data))
	return data, &out, nil
}

// EndSession removes the workspace. Ending an unknown or already ended session
// reports false without error.
func (m *Manager) EndSession(ctx context.Context, sid id.SessionID) (bool, error) {
	parsed, err := id.ParseSessionID(string(sid))
	if err != nil {
		return false, errs.Wrap(errs.KindValidation, "no session could be resolved", err)
	}

	m.mu.RLock()
	ws, ok := m.sessions[parsed]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return false, nil
	}

	if err := m.destroy(ws, "ended"); err != nil {
		return false, err
	}
	return true, nil
}

// destroy removes the workspace and the table row. ws.mu must be held. The
// directory goes first so that a concurrent getOrCreate blocked on ws.mu can
// only ever recreate it afterwards.
func (m *Manager) destroy(ws *workspace, reason string) error {
	if err := os.RemoveAll(ws.dir); err != nil {
		return errs.Storage("failed to cleanup session files", err)
	}

	m.mu.Lock()
	if m.sessions[ws.id] == ws {
		delete(m.sessions, ws.id)
	}
	m.mu.Unlock()

	ws.closed = true
	ws.files = nil
	m.metrics.SessionClosed(reason)
	m.logger.Debug("Session workspace removed",
		zap.String("session_id", string(ws.id)),
		zap.String("reason", reason),
	)
	return nil
}

// SweepExpired removes every session older than the TTL and returns how many were
// removed. Sessions that are locked by an in-flight operation are skipped until the
// next pass.
func (m *Manager) SweepExpired(ctx context.Context) int {
	cutoff := m.now().Add(-m.cfg.TTL)

	m.mu.RLock()
	candidates := make([]*workspace, 0)
	for _, ws := range m.sessions {
		if ws.createdAt.Before(cutoff) {
			candidates = append(candidates, ws)
		}
	}
	m.mu.RUnlock()

	removed, skipped := 0, 0
	for _, ws := range candidates {
		if ctx.Err() != nil {
			break
		}
		if !ws.mu.TryLock() {
			skipped++
			continue
		}
		if !ws.closed {
			if err := m.destroy(ws, "expired"); err != nil {
				m.logger.Warn("Failed to sweep session", zap.String("session_id", string(ws.id)), zap.Error(err))
			} else {
				removed++
			}
		}
		ws.mu.Unlock()
	}

	if removed > 0 || skipped > 0 {
		m.logger.Info("Swept expired sessions", zap.Int("removed", removed), zap.Int("skipped", skipped))
	}
	return removed
}

// StartSweeper runs SweepExpired on a ticker until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.cfg.TTL / 4
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SweepExpired(ctx)
			}
		}
	}()
}

// storedNames lists the stored file names in upload order, skipping partial uploads.
func (ws *workspace) storedNames() ([]string, error) {
	entries, err := os.ReadDir(ws.dir)
	if err != nil {
		return nil, errs.Storage("failed to read session directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (ws *workspace) findByPrefix(prefix string) (string, error) {
	names, err := ws.storedNames()
	if err != nil {
		return "", err
	}
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			return name, nil
		}
	}
	return "", nil
}

// splitStoredName splits "<fileID>_<name>" back into its parts.
func splitStoredName(stored string) (id.FileID, string, bool) {
	prefix, original, ok := strings.Cut(stored, "_")
	if !ok || !id.IsFileID(prefix) {
		return "", "", false
	}
	return id.FileID(prefix), original, true
}

func detectType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

// contextReader stops a copy once the request context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
