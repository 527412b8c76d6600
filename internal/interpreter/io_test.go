package interpreter

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/wfl/internal/ast"
)

func TestFileIoClientWriteReadRoundTrip(t *testing.T) {
	client := NewFileIoClient()
	path := filepath.Join(t.TempDir(), "data.txt")

	h, err := client.Open(path)
	require.NoError(t, err)
	require.NoError(t, client.Write(h, "hello", ast.Overwrite))

	got, err := client.Read(h)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	require.NoError(t, client.Write(h, " world", ast.AppendMode))
	got, err = client.Read(h)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestFileIoClientCloseIsIdempotent(t *testing.T) {
	client := NewFileIoClient()
	path := filepath.Join(t.TempDir(), "data.txt")

	h, err := client.Open(path)
	require.NoError(t, err)
	require.NoError(t, client.Close(h))
	assert.NoError(t, client.Close(h), "closing an already-closed handle must not error")
}

func TestFileIoClientCloseUnknownHandleErrors(t *testing.T) {
	client := NewFileIoClient()
	err := client.Close(Handle{ID: "does-not-exist", Kind: FileHandle})
	assert.Error(t, err)
}

func TestFileIoClientReadFromClosedHandleErrors(t *testing.T) {
	client := NewFileIoClient()
	path := filepath.Join(t.TempDir(), "data.txt")

	h, err := client.Open(path)
	require.NoError(t, err)
	require.NoError(t, client.Close(h))

	_, err = client.Read(h)
	assert.Error(t, err, "reading a closed handle must still error")
}

func TestFileIoClientHttpGetAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte("posted"))
			return
		}
		w.Write([]byte("got it"))
	}))
	defer srv.Close()

	client := NewFileIoClient()
	body, err := client.HttpGet(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "got it", body)

	body, err = client.HttpPost(srv.URL, `{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, "posted", body)
}

func TestFileIoClientHttpGetErrorsOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewFileIoClient()
	_, err := client.HttpGet(srv.URL)
	assert.Error(t, err)
}

func TestInterpreterOpenWriteReadCloseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greeting.txt")
	source := `open file at "` + path + `" as h
write "hi there" to h
read from h into contents
display contents
close file h
`
	out, _, err := runSource(t, source)
	require.NoError(t, err)
	assert.Equal(t, "hi there\n", out)
}

func TestInterpreterClosingFileTwiceIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greeting.txt")
	source := `open file at "` + path + `" as h
close file h
close file h
display "done"
`
	out, _, err := runSource(t, source)
	require.NoError(t, err)
	assert.Equal(t, "done\n", out)
}
