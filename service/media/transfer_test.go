package media

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lchat/tools/errs"

	pkgerrors "github.com/pkg/errors"
)

const testBaseURL = "https://media.test"

func testMeta(totalChunks int, fileSize int64) Meta {
	return Meta{
		SenderID:    "u-sender",
		RecipientID: "u-recipient",
		MessageID:   "m-1",
		FileID:      "f-1",
		FileName:    "report.pdf",
		ContentType: "application/pdf",
		FileSize:    fileSize,
		TotalChunks: totalChunks,
		KeyVersion:  3,
	}
}

func chunk(b byte, n int) []byte { return bytes.Repeat([]byte{b}, n) }

func TestPathsAreDeterministic(t *testing.T) {
	files := NewFileManager("/data", testBaseURL)
	thumbs := NewThumbnailManager("/data", testBaseURL, files)

	p := files.Path("u-r", "f-1", "report.pdf")
	assert.Equal(t, p, files.Path("u-r", "f-1", "report.pdf"))
	assert.Contains(t, p, "uploads/u-r/f-1_report.pdf.enc")

	tp := thumbs.Path("u-r", "f-1", "report.pdf")
	assert.Contains(t, tp, "uploads/thumbnails/u-r/f-1_report_thumbnail.enc")

	u := files.URL("u-r", "f-1", "report.pdf")
	assert.True(t, strings.HasPrefix(u, testBaseURL+"/"), u)
}

func TestTransferLifecycle(t *testing.T) {
	mgr := NewFileManager(t.TempDir(), testBaseURL)
	size := int64(2*ChunkSize + ChunkSize/2) // 2.5 MiB in 3 chunks
	st, err := mgr.Start(testMeta(3, size))
	require.NoError(t, err)
	assert.False(t, st.AlreadyComplete)
	assert.Zero(t, st.ReceivedChunks)

	res, err := mgr.WriteChunk("f-1", 0, chunk('a', ChunkSize))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReceivedChunks)
	assert.Equal(t, int64(ChunkSize), res.UpdatedSize)
	assert.False(t, res.Complete)

	res, err = mgr.WriteChunk("f-1", ChunkSize, chunk('b', ChunkSize))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ReceivedChunks)
	assert.False(t, res.Complete)

	res, err = mgr.WriteChunk("f-1", 2*ChunkSize, chunk('c', ChunkSize/2))
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, size, res.UpdatedSize)

	// completion is observable exactly once: the session is gone
	_, err = mgr.WriteChunk("f-1", size, chunk('d', 16))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, &errs.ErrTransferNotFound))
}

func TestResumeDerivesChunksFromDisk(t *testing.T) {
	root := t.TempDir()
	mgr := NewFileManager(root, testBaseURL)
	size := int64(2*ChunkSize + ChunkSize/2)
	_, err := mgr.Start(testMeta(3, size))
	require.NoError(t, err)
	_, err = mgr.WriteChunk("f-1", 0, chunk('a', ChunkSize))
	require.NoError(t, err)
	_, err = mgr.WriteChunk("f-1", ChunkSize, chunk('b', ChunkSize))
	require.NoError(t, err)

	// gateway restart: fresh manager, client resumes at 2 MiB
	mgr2 := NewFileManager(root, testBaseURL)
	meta := testMeta(3, size)
	meta.ByteOffset = 2 * ChunkSize
	st, err := mgr2.Start(meta)
	require.NoError(t, err)
	assert.False(t, st.AlreadyComplete)
	assert.Equal(t, 2, st.ReceivedChunks)
}

func TestResumeClampsClaimedOffset(t *testing.T) {
	root := t.TempDir()
	mgr := NewFileManager(root, testBaseURL)
	_, err := mgr.Start(testMeta(3, 3*ChunkSize))
	require.NoError(t, err)
	_, err = mgr.WriteChunk("f-1", 0, chunk('a', ChunkSize))
	require.NoError(t, err)

	mgr2 := NewFileManager(root, testBaseURL)
	meta := testMeta(3, 3*ChunkSize)
	meta.ByteOffset = 10 * ChunkSize // claims far more than is on disk
	st, err := mgr2.Start(meta)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ReceivedChunks, "resume point is what the disk holds, not what the client claims")
}

func TestStartAlreadyComplete(t *testing.T) {
	root := t.TempDir()
	mgr := NewFileManager(root, testBaseURL)
	meta := testMeta(2, 2*ChunkSize)
	_, err := mgr.Start(meta)
	require.NoError(t, err)
	_, err = mgr.WriteChunk("f-1", 0, chunk('a', ChunkSize))
	require.NoError(t, err)
	_, err = mgr.WriteChunk("f-1", ChunkSize, chunk('b', ChunkSize))
	require.NoError(t, err)

	st, err := mgr.Start(meta)
	require.NoError(t, err)
	assert.True(t, st.AlreadyComplete)
	assert.Equal(t, 2, st.ReceivedChunks)
}

func TestChunkOffsetNeverPunchesHoles(t *testing.T) {
	mgr := NewFileManager(t.TempDir(), testBaseURL)
	_, err := mgr.Start(testMeta(3, 3*ChunkSize))
	require.NoError(t, err)

	// first write lands at 0 regardless of the claimed offset
	res, err := mgr.WriteChunk("f-1", 5*ChunkSize, chunk('a', ChunkSize))
	require.NoError(t, err)
	assert.Equal(t, int64(ChunkSize), res.UpdatedSize)

	// later writes clamp to the current end of file
	res, err = mgr.WriteChunk("f-1", 9*ChunkSize, chunk('b', ChunkSize))
	require.NoError(t, err)
	assert.Equal(t, int64(2*ChunkSize), res.UpdatedSize)
}

func TestThumbnailReportsCombinedSize(t *testing.T) {
	root := t.TempDir()
	files := NewFileManager(root, testBaseURL)
	thumbs := NewThumbnailManager(root, testBaseURL, files)

	_, err := files.Start(testMeta(1, ChunkSize))
	require.NoError(t, err)
	_, err = files.WriteChunk("f-1", 0, chunk('a', ChunkSize))
	require.NoError(t, err)

	meta := testMeta(1, 4096)
	_, err = thumbs.Start(meta)
	require.NoError(t, err)
	res, err := thumbs.WriteChunk("f-1", 0, chunk('t', 4096))
	require.NoError(t, err)
	assert.Equal(t, int64(ChunkSize+4096), res.UpdatedSize, "thumbnail acks report primary plus thumbnail bytes")
	assert.True(t, res.Complete)
}

func TestRemoveByURL(t *testing.T) {
	root := t.TempDir()
	mgr := NewFileManager(root, testBaseURL)
	_, err := mgr.Start(testMeta(1, 16))
	require.NoError(t, err)
	_, err = mgr.WriteChunk("f-1", 0, chunk('a', 16))
	require.NoError(t, err)

	path := mgr.Path("u-recipient", "f-1", "report.pdf")
	_, err = os.Stat(path)
	require.NoError(t, err)

	mgr.RemoveByURL(mgr.URL("u-recipient", "f-1", "report.pdf"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// foreign URLs are ignored
	assert.NotPanics(t, func() { mgr.RemoveByURL("https://elsewhere.test/uploads/x") })
}
