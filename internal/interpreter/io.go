package interpreter

import (
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/aledsdavies/wfl/internal/ast"
)

// HandleKind distinguishes the two resources the interpreter opens behind a
// Handle: local files and outstanding HTTP requests are never confused even
// if their opaque IDs happened to collide.
type HandleKind int

const (
	FileHandle HandleKind = iota
	HttpHandle
)

// Handle is the opaque capability a script holds in a variable after
// `open file ... as X`; the interpreter never exposes the underlying *os.File
// or path directly (§4.5: "Files are identified by opaque handles").
type Handle struct {
	ID   string
	Kind HandleKind
}

func (Handle) valueNode()        {}
func (h Handle) String() string { return "handle:" + h.ID }

type openFile struct {
	f      *os.File
	path   string
	closed bool
}

// IoClient performs the file/HTTP operations behind WaitFor/OpenFile/etc.
// It is an interface so tests can swap in a fake without touching a real
// filesystem or network (mirrors the teacher's lookup-function seams in
// BaseExecutionContext).
type IoClient interface {
	Open(path string) (Handle, error)
	Read(h Handle) (string, error)
	Write(h Handle, content string, mode ast.WriteMode) error
	Close(h Handle) error
	HttpGet(url string) (string, error)
	HttpPost(url, data string) (string, error)
}

// fileIoClient is the default IoClient: a process-scoped, mutex-guarded
// handle table keyed by BLAKE2b-derived IDs (§5: "guarded by an async mutex
// so concurrent I/O from host threads cannot corrupt it").
type fileIoClient struct {
	mu      sync.Mutex
	key     [32]byte
	seq     uint64
	handles map[string]*openFile
	client  *http.Client
}

// NewFileIoClient builds the default IoClient used by the CLI entry point.
func NewFileIoClient() IoClient {
	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		// deterministic fallback key; still unique per handle via seq+path
		copy(key[:], []byte("wfl-interpreter-handle-table-key"))
	}
	return &fileIoClient{key: key, handles: make(map[string]*openFile), client: http.DefaultClient}
}

func (c *fileIoClient) nextID(path string) string {
	c.seq++
	h, _ := blake2b.New256(c.key[:])
	fmt.Fprintf(h, "%s\x00%d", path, c.seq)
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

func (c *fileIoClient) Open(path string) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return Handle{}, fmt.Errorf("cannot open %q: %w", path, err)
	}
	id := c.nextID(path)
	c.handles[id] = &openFile{f: f, path: path}
	return Handle{ID: id, Kind: FileHandle}, nil
}

func (c *fileIoClient) lookup(h Handle) (*openFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	of, ok := c.handles[h.ID]
	if !ok || of.closed {
		return nil, fmt.Errorf("handle %q is not open", h.ID)
	}
	return of, nil
}

func (c *fileIoClient) Read(h Handle) (string, error) {
	of, err := c.lookup(h)
	if err != nil {
		return "", err
	}
	if _, err := of.f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	data, err := io.ReadAll(of.f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *fileIoClient) Write(h Handle, content string, mode ast.WriteMode) error {
	of, err := c.lookup(h)
	if err != nil {
		return err
	}
	if mode == ast.AppendMode {
		if _, err := of.f.Seek(0, io.SeekEnd); err != nil {
			return err
		}
	} else {
		if err := of.f.Truncate(0); err != nil {
			return err
		}
		if _, err := of.f.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}
	_, err = of.f.WriteString(content)
	return err
}

// Close is idempotent: closing an already-closed handle is not an error
// (§8 I-Runtime3), only an unknown handle ID is.
func (c *fileIoClient) Close(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	of, ok := c.handles[h.ID]
	if !ok {
		return fmt.Errorf("handle %q is not open", h.ID)
	}
	if of.closed {
		return nil
	}
	of.closed = true
	return of.f.Close()
}

func (c *fileIoClient) HttpGet(url string) (string, error) {
	resp, err := c.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return string(body), nil
}

func (c *fileIoClient) HttpPost(url, data string) (string, error) {
	resp, err := c.client.Post(url, "application/json", strings.NewReader(data))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}
	return string(body), nil
}
