package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvpke/kernel/src/defs"
)

func TestOpen_CreatesOnMissingWithOCREAT(t *testing.T) {
	fs := NewMemFS()
	fd, err := fs.Open("/a", O_RDWR|O_CREAT)
	require.Equal(t, defs.Err_t(0), err)
	assert.GreaterOrEqual(t, fd, 0)
}

func TestOpen_MissingWithoutOCREATFails(t *testing.T) {
	fs := NewMemFS()
	_, err := fs.Open("/missing", O_RDONLY)
	assert.Equal(t, defs.ENOENT, err)
}

func TestWriteThenRead_RoundTrips(t *testing.T) {
	fs := NewMemFS()
	fd, _ := fs.Open("/a", O_RDWR|O_CREAT)

	n, err := fs.Write(fd, []byte("hello"))
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 5, n)

	require.Equal(t, defs.Err_t(0), fs.Close(fd))
	fd2, _ := fs.Open("/a", O_RDONLY)
	got, err := fs.Read(fd2, 5)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, "hello", string(got))
}

func TestRead_PastEndOfFileReturnsShortRead(t *testing.T) {
	fs := NewMemFS()
	fd, _ := fs.Open("/a", O_RDWR|O_CREAT)
	fs.Write(fd, []byte("hi"))
	fs.Lseek(fd, 0, 0)

	got, err := fs.Read(fd, 100)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, "hi", string(got))
}

func TestLseek_WhenceVariants(t *testing.T) {
	fs := NewMemFS()
	fd, _ := fs.Open("/a", O_RDWR|O_CREAT)
	fs.Write(fd, []byte("0123456789"))

	pos, err := fs.Lseek(fd, 2, 0) // SEEK_SET
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 2, pos)

	pos, _ = fs.Lseek(fd, 3, 1) // SEEK_CUR
	assert.Equal(t, 5, pos)

	pos, _ = fs.Lseek(fd, -1, 2) // SEEK_END
	assert.Equal(t, 9, pos)

	_, err = fs.Lseek(fd, 0, 99)
	assert.Equal(t, defs.EINVAL, err)
}

func TestStat_ReportsFileSize(t *testing.T) {
	fs := NewMemFS()
	fd, _ := fs.Open("/a", O_RDWR|O_CREAT)
	fs.Write(fd, []byte("abc"))

	st, err := fs.Stat("/a")
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, uint(3), st.Size())
}

func TestStat_MissingFileReturnsENOENT(t *testing.T) {
	fs := NewMemFS()
	_, err := fs.Stat("/nope")
	assert.Equal(t, defs.ENOENT, err)
}

func TestClose_DoubleCloseFails(t *testing.T) {
	fs := NewMemFS()
	fd, _ := fs.Open("/a", O_RDWR|O_CREAT)
	require.Equal(t, defs.Err_t(0), fs.Close(fd))
	assert.Equal(t, defs.EINVAL, fs.Close(fd))
}

func TestMkdir_DuplicateFails(t *testing.T) {
	fs := NewMemFS()
	require.Equal(t, defs.Err_t(0), fs.Mkdir("/d"))
	assert.Equal(t, defs.EINVAL, fs.Mkdir("/d"))
}

func TestOpendirReaddir_ListsFiles(t *testing.T) {
	fs := NewMemFS()
	fs.Open("/a", O_RDWR|O_CREAT)
	fs.Open("/b", O_RDWR|O_CREAT)
	require.Equal(t, defs.Err_t(0), fs.Mkdir("/sub"))

	dfd, err := fs.Opendir("/")
	require.Equal(t, defs.Err_t(0), err)

	seen := map[string]bool{}
	for {
		name, err := fs.Readdir(dfd)
		if err != 0 {
			break
		}
		seen[name] = true
	}
	assert.True(t, seen["/a"])
	assert.True(t, seen["/b"])
}

func TestOpendir_MissingDirFails(t *testing.T) {
	fs := NewMemFS()
	_, err := fs.Opendir("/nowhere")
	assert.Equal(t, defs.ENOENT, err)
}

func TestLinkThenUnlink(t *testing.T) {
	fs := NewMemFS()
	fd, _ := fs.Open("/a", O_RDWR|O_CREAT)
	fs.Write(fd, []byte("x"))

	require.Equal(t, defs.Err_t(0), fs.Link("/a", "/b"))
	st, err := fs.Stat("/b")
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, uint(1), st.Size())

	require.Equal(t, defs.Err_t(0), fs.Unlink("/a"))
	_, err = fs.Stat("/a")
	assert.Equal(t, defs.ENOENT, err)
}

func TestUnlink_MissingFails(t *testing.T) {
	fs := NewMemFS()
	assert.Equal(t, defs.ENOENT, fs.Unlink("/nope"))
}
