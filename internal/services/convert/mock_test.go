package convert_test

import (
	"bytes"
	"context"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/eric2788/fileconv/internal/modules/engine"
	"github.com/eric2788/fileconv/internal/services/convert"
	"github.com/eric2788/fileconv/internal/services/result"
	"github.com/stretchr/testify/require"
)

type call struct {
	op    string
	name  string
	args  []string
	start time.Time
	end   time.Time
}

// mockEngine keeps its files in memory. Exec copies the -i file to the last
// argument, or fails when the input contains "corrupt".
type mockEngine struct {
	mu    sync.Mutex
	files map[string][]byte
	calls []call

	// closed by the test to let a blocked exec continue
	block   chan struct{}
	started chan struct{}
	onExec  func()

	// number of upcoming deletes that fail
	deleteFailures int
}

func newMockEngine() *mockEngine {
	return &mockEngine{files: make(map[string][]byte)}
}

// blocking makes every exec wait for release.
func (m *mockEngine) blocking() (release func()) {
	m.block = make(chan struct{})
	m.started = make(chan struct{}, 16)
	var once sync.Once
	return func() { once.Do(func() { close(m.block) }) }
}

func (m *mockEngine) record(c call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *mockEngine) WriteFile(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	m.mu.Lock()
	m.files[name] = slices.Clone(data)
	m.mu.Unlock()
	m.record(call{op: "write", name: name, start: start, end: time.Now()})
	return nil
}

func (m *mockEngine) Exec(ctx context.Context, args []string) error {
	start := time.Now()
	defer func() {
		m.record(call{op: "exec", args: slices.Clone(args), start: start, end: time.Now()})
	}()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.onExec != nil {
		m.onExec()
	}
	time.Sleep(2 * time.Millisecond)

	in := args[slices.Index(args, "-i")+1]
	out := args[len(args)-1]

	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[in]
	if !ok {
		return &engine.ExecError{Args: args, ExitCode: 1, Message: in + ": No such file or directory"}
	}
	if bytes.Contains(data, []byte("corrupt")) {
		return &engine.ExecError{Args: args, ExitCode: 1, Message: in + ": Invalid data found when processing input"}
	}
	m.files[out] = append([]byte("converted:"), data...)
	return nil
}

func (m *mockEngine) ReadFile(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	m.mu.Lock()
	data, ok := m.files[name]
	m.mu.Unlock()
	m.record(call{op: "read", name: name, start: start, end: time.Now()})
	if !ok {
		return nil, os.ErrNotExist
	}
	return slices.Clone(data), nil
}

func (m *mockEngine) DeleteFile(ctx context.Context, name string) error {
	start := time.Now()
	m.mu.Lock()
	var err error
	if m.deleteFailures > 0 {
		m.deleteFailures--
		err = os.ErrPermission
	} else {
		delete(m.files, name)
	}
	m.mu.Unlock()
	m.record(call{op: "delete", name: name, start: start, end: time.Now()})
	return err
}

func (m *mockEngine) Deletes() int {
	n := 0
	for _, c := range m.Calls() {
		if c.op == "delete" {
			n++
		}
	}
	return n
}

func (m *mockEngine) Calls() []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *mockEngine) Execs() []call {
	var execs []call
	for _, c := range m.Calls() {
		if c.op == "exec" {
			execs = append(execs, c)
		}
	}
	return execs
}

func (m *mockEngine) Files() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type source struct {
	handle engine.Handle
	err    error
}

func (s source) Handle() (engine.Handle, error) {
	return s.handle, s.err
}

func newResults(t *testing.T) *result.Service {
	t.Helper()
	store, err := result.Open(t.TempDir(), []byte("secret"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newService(t *testing.T, m *mockEngine) (*convert.Service, *result.Service) {
	t.Helper()
	store := newResults(t)
	svc := convert.New(source{handle: m}, store)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc, store
}

func upload(name, content string) convert.Upload {
	return convert.Upload{Filename: name, Data: []byte(content)}
}

// requireSerialized fails when any two recorded engine calls overlap in time.
func requireSerialized(t *testing.T, calls []call) {
	t.Helper()
	sorted := slices.Clone(calls)
	slices.SortFunc(sorted, func(a, b call) int { return a.start.Compare(b.start) })
	for i := 1; i < len(sorted); i++ {
		require.False(t, sorted[i].start.Before(sorted[i-1].end),
			"%s overlaps %s", sorted[i].op, sorted[i-1].op)
	}
}

// statsStore reads the queue stats while issuing a link, so it blocks
// whenever the caller still holds the queue lock.
type statsStore struct {
	convert.ResultStore
	svc *convert.Service
}

func (s *statsStore) Link(id string) (string, error) {
	s.svc.Stats()
	return s.ResultStore.Link(id)
}
