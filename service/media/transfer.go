package media

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"lchat/logger"
	"lchat/tools/errs"
)

// ChunkSize is the fixed transfer chunk size. Offsets and chunk counts are
// derived from it on both sides.
const ChunkSize = 1 << 20

// Meta is the negotiated state of one transfer, fixed at start.
type Meta struct {
	SenderID      string `json:"sender_id"`
	RecipientID   string `json:"recipient_id"`
	MessageID     string `json:"message_id"`
	ReplyID       string `json:"reply_id"`
	Message       string `json:"message"`
	Type          string `json:"type"`
	Category      string `json:"category"`
	ContentType   string `json:"content_type"`
	FileID        string `json:"file_id"`
	FileName      string `json:"file_name"`
	FileSize      int64  `json:"file_size"`
	TotalChunks   int    `json:"total_chunks"`
	ByteOffset    int64  `json:"byte_offset"` // client's claimed resume point
	KeyVersion    int64  `json:"key_version"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	TotalDuration int    `json:"total_duration"`
}

// StartState is the manager's answer to a transfer start.
type StartState struct {
	AlreadyComplete bool
	ReceivedChunks  int
}

// ChunkResult reports one accepted chunk.
type ChunkResult struct {
	Meta           Meta
	UpdatedSize    int64 // thumbnail transfers report primary + thumbnail combined
	ReceivedChunks int
	Complete       bool
}

type session struct {
	mu       sync.Mutex
	meta     Meta
	path     string
	received int
}

// Manager owns one class of transfers (primary files or thumbnails). Sessions
// are keyed by file id; each session serializes its own chunk writes, so
// transfers of different files never contend.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session

	root      string
	baseURL   string
	thumbnail bool
	primary   *Manager // set on the thumbnail manager for combined sizing
}

func NewFileManager(root, baseURL string) *Manager {
	return &Manager{sessions: make(map[string]*session), root: root, baseURL: baseURL}
}

func NewThumbnailManager(root, baseURL string, primary *Manager) *Manager {
	return &Manager{sessions: make(map[string]*session), root: root, baseURL: baseURL, thumbnail: true, primary: primary}
}

// Path derives the deterministic on-disk location for a transfer. The same
// inputs always map to the same file, which is what makes resume work.
func (m *Manager) Path(recipientID, fileID, fileName string) string {
	if m.thumbnail {
		base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
		return filepath.Join(m.root, "uploads", "thumbnails", recipientID, fileID+"_"+base+"_thumbnail.enc")
	}
	return filepath.Join(m.root, "uploads", recipientID, fileID+"_"+fileName+".enc")
}

// URL maps the stored file to its download URL.
func (m *Manager) URL(recipientID, fileID, fileName string) string {
	rel, err := filepath.Rel(m.root, m.Path(recipientID, fileID, fileName))
	if err != nil {
		rel = m.Path(recipientID, fileID, fileName)
	}
	return strings.TrimRight(m.baseURL, "/") + "/" + filepath.ToSlash(rel)
}

// Start opens or resumes a transfer session. When the file is already fully
// present no session is created and AlreadyComplete is set; otherwise the
// resume point is clamped to what is actually on disk and the acknowledged
// chunk count is derived from it.
func (m *Manager) Start(meta Meta) (*StartState, error) {
	path := m.Path(meta.RecipientID, meta.FileID, meta.FileName)
	received := 0
	if fi, err := os.Stat(path); err == nil {
		if meta.FileSize > 0 && fi.Size() >= meta.FileSize {
			return &StartState{AlreadyComplete: true, ReceivedChunks: meta.TotalChunks}, nil
		}
		off := meta.ByteOffset
		if off > fi.Size() {
			off = fi.Size()
		}
		received = int((off + ChunkSize - 1) / ChunkSize)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create transfer dir")
		}
	}

	m.mu.Lock()
	m.sessions[meta.FileID] = &session{meta: meta, path: path, received: received}
	m.mu.Unlock()
	return &StartState{ReceivedChunks: received}, nil
}

// Session returns the negotiated meta of an open transfer.
func (m *Manager) Session(fileID string) (Meta, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[fileID]
	if !ok {
		return Meta{}, false
	}
	return s.meta, true
}

// WriteChunk persists one chunk at the client's offset, clamped to the bytes
// already on disk so a stale offset can never punch a hole in the file. The
// chunk counter advances only after a successful write; an I/O failure leaves
// the session open for retry.
func (m *Manager) WriteChunk(fileID string, byteOffset int64, data []byte) (*ChunkResult, error) {
	m.mu.RLock()
	s, ok := m.sessions[fileID]
	m.mu.RUnlock()
	if !ok {
		return nil, &errs.ErrTransferNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	off := byteOffset
	if fi, err := os.Stat(s.path); err == nil {
		if off > fi.Size() {
			off = fi.Size()
		}
	} else {
		off = 0
	}

	size, err := writeAt(s.path, off, data)
	if err != nil {
		return nil, errs.ErrTransferIO.WrapMsg(err.Error())
	}

	updated := size
	if m.thumbnail && m.primary != nil {
		p := m.primary.Path(s.meta.RecipientID, s.meta.FileID, s.meta.FileName)
		if fi, err := os.Stat(p); err == nil {
			updated += fi.Size()
		}
	}

	s.received++
	complete := s.meta.TotalChunks > 0 && s.received >= s.meta.TotalChunks
	if complete {
		m.mu.Lock()
		delete(m.sessions, fileID)
		m.mu.Unlock()
	}
	return &ChunkResult{Meta: s.meta, UpdatedSize: updated, ReceivedChunks: s.received, Complete: complete}, nil
}

// Stat returns the current on-disk size of a stored file.
func (m *Manager) Stat(recipientID, fileID, fileName string) (int64, error) {
	fi, err := os.Stat(m.Path(recipientID, fileID, fileName))
	if err != nil {
		return 0, errors.Wrap(err, "stat media")
	}
	return fi.Size(), nil
}

// RemoveByURL deletes a stored file addressed by its download URL.
// Best effort: a missing file or a foreign URL is logged and ignored.
func (m *Manager) RemoveByURL(u string) {
	base := strings.TrimRight(m.baseURL, "/") + "/"
	if !strings.HasPrefix(u, base) {
		logger.Warnf("media delete skipped, foreign url=%s", u)
		return
	}
	rel := strings.TrimPrefix(u, base)
	path := filepath.Join(m.root, filepath.FromSlash(rel))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("media delete failed, path=%s err=%v", path, err)
	}
}

func writeAt(path string, off int64, data []byte) (int64, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteAt(data, off); err != nil {
		return 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
