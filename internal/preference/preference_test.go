package preference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/conneroisu/folio/internal/errors"
)

// failingStore fails every operation, optionally by panicking.
type failingStore struct {
	panics bool
}

func (f *failingStore) Name() string { return "failing" }

func (f *failingStore) Load(context.Context, *http.Request) (string, error) {
	if f.panics {
		panic("storage unavailable")
	}
	return "", errors.New("storage unavailable")
}

func (f *failingStore) Save(context.Context, http.ResponseWriter, *http.Request, string) error {
	if f.panics {
		panic("storage unavailable")
	}
	return errors.New("storage unavailable")
}

// failingKV fails every KV operation.
type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) { return "", errors.New("kv down") }

func (failingKV) Set(context.Context, string, string, time.Duration) error {
	return errors.New("kv down")
}

func (failingKV) Close() error { return nil }

// slowKV holds every read until the caller gives up.
type slowKV struct{ failingKV }

func (slowKV) Get(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}

	return nil
}

// requestWithCookies replays the cookies a response set.
func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	return req
}

func TestCookieStore(t *testing.T) {
	tests := []struct {
		name       string
		production bool
	}{
		{name: "development", production: false},
		{name: "production", production: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewCookieStore("", DefaultCookieOptions(tt.production))
			assert.Equal(t, DefaultCookieName, store.CookieName())

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			require.NoError(t, store.Save(context.Background(), rec, req, "en"))

			c := findCookie(t, rec, DefaultCookieName)
			require.NotNil(t, c)
			assert.Equal(t, "en", c.Value)
			assert.Equal(t, "/", c.Path)
			assert.Equal(t, int(OneYear/time.Second), c.MaxAge)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
			assert.Equal(t, tt.production, c.Secure)
			assert.False(t, c.HttpOnly)

			value, err := store.Load(context.Background(), requestWithCookies(rec))
			require.NoError(t, err)
			assert.Equal(t, "en", value)
		})
	}
}

func TestCookieStoreMissingCookie(t *testing.T) {
	store := NewCookieStore("pref", DefaultCookieOptions(false))

	value, err := store.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NoError(t, err)
	assert.Empty(t, value)

	assert.Error(t, store.Save(context.Background(), nil, nil, "en"))
}

func TestDurableStoreIssuesVisitorID(t *testing.T) {
	kv := NewMemoryKV()
	store := NewDurableStore(kv, DurableStoreOptions{Cookie: DefaultCookieOptions(true)})
	ctx := context.Background()

	value, err := store.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Empty(t, value, "unknown visitor has no preference")

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil), "en"))

	c := findCookie(t, rec, DefaultVisitorCookieName)
	require.NotNil(t, c)
	_, err = uuid.Parse(c.Value)
	assert.NoError(t, err)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, 1, kv.Len())

	value, err = store.Load(ctx, requestWithCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, "en", value)

	// A returning visitor keeps its id.
	rec2 := httptest.NewRecorder()
	require.NoError(t, store.Save(ctx, rec2, requestWithCookies(rec), "ar"))
	assert.Nil(t, findCookie(t, rec2, DefaultVisitorCookieName))
	assert.Equal(t, 1, kv.Len())

	value, err = store.Load(ctx, requestWithCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, "ar", value)
}

func TestDurableStoreRejectsForgedVisitorID(t *testing.T) {
	store := NewDurableStore(NewMemoryKV(), DurableStoreOptions{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultVisitorCookieName, Value: "../../etc/passwd"})

	value, err := store.Load(context.Background(), req)
	assert.NoError(t, err)
	assert.Empty(t, value)
}

func TestDurableStoreReadErrorIsStoreError(t *testing.T) {
	store := NewDurableStore(failingKV{}, DurableStoreOptions{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultVisitorCookieName, Value: uuid.NewString()})

	_, err := store.Load(context.Background(), req)
	require.Error(t, err)
	assert.True(t, ferrors.IsStoreError(err))
	assert.True(t, ferrors.IsRecoverable(err))
}

func TestMemoryKVExpiry(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "en", time.Hour))
	require.NoError(t, kv.Set(ctx, "forever", "ar", 0))

	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "en", v)

	now = now.Add(time.Hour)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, kv.Len())

	v, err = kv.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "ar", v)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, kv.Set(cancelled, "k", "en", 0))
	_, err = kv.Get(cancelled, "forever")
	assert.Error(t, err)
}

func TestRedisKVUnreachable(t *testing.T) {
	kv := NewRedisKV(RedisOptions{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	defer kv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := kv.Get(ctx, "folio:locale:x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, kv.Set(ctx, "folio:locale:x", "en", time.Minute))
	assert.Error(t, kv.Ping(ctx))
}

func TestPersisterWritesSurviveFailingStore(t *testing.T) {
	for _, panics := range []bool{false, true} {
		cookies := NewCookieStore("", DefaultCookieOptions(false))
		p := NewPersister([]Store{&failingStore{panics: panics}, cookies})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		err := p.Persist(context.Background(), rec, req, "en")
		assert.Error(t, err)

		c := findCookie(t, rec, DefaultCookieName)
		require.NotNil(t, c, "cookie write must not depend on the failing store")
		assert.Equal(t, "en", c.Value)
		assert.Equal(t, Stats{Writes: 1, Failures: 1}, p.Stats())
	}
}

func TestPersisterBackgroundWriteFailure(t *testing.T) {
	durable := NewDurableStore(failingKV{}, DurableStoreOptions{})
	cookies := NewCookieStore("", DefaultCookieOptions(false))
	p := NewPersister([]Store{durable, cookies}, WithWriteTimeout(time.Second))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	// The durable write is detached, so nothing fails synchronously.
	require.NoError(t, p.Persist(context.Background(), rec, req, "en"))
	p.Wait()

	assert.NotNil(t, findCookie(t, rec, DefaultCookieName))
	assert.NotNil(t, findCookie(t, rec, DefaultVisitorCookieName))
	assert.Equal(t, Stats{Writes: 1, Failures: 1}, p.Stats())
}

func TestPersisterBackgroundWriteOutlivesRequest(t *testing.T) {
	kv := NewMemoryKV()
	durable := NewDurableStore(kv, DurableStoreOptions{})
	p := NewPersister([]Store{durable})

	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()
	require.NoError(t, p.Persist(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil), "ar"))
	cancel()
	p.Wait()

	assert.Equal(t, 1, kv.Len())
	assert.Equal(t, "ar", p.Load(context.Background(), requestWithCookies(rec), nil))
}

func TestPersisterLoadOrderAndValidation(t *testing.T) {
	kv := NewMemoryKV()
	durable := NewDurableStore(kv, DurableStoreOptions{})
	cookies := NewCookieStore("", DefaultCookieOptions(false))
	p := NewPersister([]Store{&failingStore{panics: true}, durable, cookies}, WithSynchronousWrites())
	ctx := context.Background()

	rec := httptest.NewRecorder()
	require.Error(t, p.Persist(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil), "de"))
	assert.Equal(t, 1, kv.Len())

	req := requestWithCookies(rec)
	assert.Equal(t, "de", p.Load(ctx, req, nil))

	// Rejected values are treated as absent in every store.
	onlyEnglish := func(v string) bool { return v == "en" }
	assert.Equal(t, "", p.Load(ctx, req, onlyEnglish))

	cookieOnly := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieOnly.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "en"})
	assert.Equal(t, "en", p.Load(ctx, cookieOnly, onlyEnglish))

	assert.Len(t, p.Stores(), 3)
}

func TestPersisterLoadReadTimeout(t *testing.T) {
	durable := NewDurableStore(slowKV{}, DurableStoreOptions{})
	p := NewPersister([]Store{durable}, WithReadTimeout(20*time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultVisitorCookieName, Value: uuid.NewString()})

	start := time.Now()
	assert.Equal(t, "", p.Load(context.Background(), req, nil))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPersisterLoadCookieBeforeDurable(t *testing.T) {
	kv := NewMemoryKV()
	cookies := NewCookieStore("", DefaultCookieOptions(false))
	durable := NewDurableStore(kv, DurableStoreOptions{})
	p := NewPersister([]Store{cookies, durable}, WithSynchronousWrites())
	ctx := context.Background()

	rec := httptest.NewRecorder()
	require.NoError(t, p.Persist(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil), "en"))

	// A client-side switch rewrites only the locale cookie.
	var visitor *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultVisitorCookieName {
			visitor = c
		}
	}
	require.NotNil(t, visitor)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(visitor)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "ar"})

	assert.Equal(t, "ar", p.Load(ctx, req, nil))
}
