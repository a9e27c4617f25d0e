// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/shared"
)

// MemoryRepository is an in-memory test double for [models.IdentityRepository].
//
// Set the Fail* fields to make the matching method return that error.
type MemoryRepository struct {
	mu         sync.Mutex
	identities map[string]*models.Identity

	FailList         error
	FailUpsert       error
	FailSaveTokens   error
	FailSaveProgress error

	TokenWrites    int
	ProgressWrites int
}

func NewMemoryRepository(identities ...*models.Identity) *MemoryRepository {
	m := &MemoryRepository{identities: make(map[string]*models.Identity)}
	for _, i := range identities {
		m.identities[i.ID] = i.Clone()
	}
	return m
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.identities[id]
	if !ok {
		return nil, shared.ErrIdentityNotFound
	}
	return i.Clone(), nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailList != nil {
		return nil, m.FailList
	}

	out := make([]*models.Identity, 0, len(m.identities))
	for _, i := range m.identities {
		out = append(out, i.Clone())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *MemoryRepository) Upsert(ctx context.Context, identity *models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpsert != nil {
		return m.FailUpsert
	}
	m.identities[identity.ID] = identity.Clone()
	return nil
}

func (m *MemoryRepository) SaveTokens(ctx context.Context, id, access, refresh string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSaveTokens != nil {
		return m.FailSaveTokens
	}
	i, ok := m.identities[id]
	if !ok {
		return shared.ErrIdentityNotFound
	}
	i.AccessToken, i.RefreshToken, i.ExpirationDate = access, refresh, expires
	m.TokenWrites++
	return nil
}

func (m *MemoryRepository) SaveProgress(ctx context.Context, id, etag string, lastAdded *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSaveProgress != nil {
		return m.FailSaveProgress
	}
	i, ok := m.identities[id]
	if !ok {
		return shared.ErrIdentityNotFound
	}
	i.ETag = etag
	if lastAdded != nil {
		t := *lastAdded
		i.LastAdded = &t
	} else {
		i.LastAdded = nil
	}
	m.ProgressWrites++
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.identities[id]; !ok {
		return shared.ErrIdentityNotFound
	}
	delete(m.identities, id)
	return nil
}

// Snapshot returns a copy of the stored identity or nil.
func (m *MemoryRepository) Snapshot(id string) *models.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.identities[id]; ok {
		return i.Clone()
	}
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
