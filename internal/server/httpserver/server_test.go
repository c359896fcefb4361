package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jk100/archiv-admin/internal/errs"
	"github.com/jk100/archiv-admin/internal/model"
	"github.com/jk100/archiv-admin/internal/router"
	"github.com/jk100/archiv-admin/internal/service"
)

type fakeSession struct {
	mu     sync.Mutex
	authed bool
	admin  bool
	inits  int
	lastEr string
}

var _ SessionService = (*fakeSession)(nil)

func (f *fakeSession) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return nil
}

func (f *fakeSession) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authed
}

func (f *fakeSession) IsAdmin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admin
}

func (f *fakeSession) Login(_ context.Context, email, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if password != "pw" {
		f.lastEr = errs.MsgInvalidCredentials
		return errs.ErrInvalidCredentials
	}
	f.authed, f.admin, f.lastEr = true, email == "admin@x", ""
	return nil
}

func (f *fakeSession) Logout(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authed, f.admin = false, false
}

func (f *fakeSession) State() service.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return service.SessionState{Authenticated: f.authed, IsAdmin: f.admin, LastError: f.lastEr}
}

func (f *fakeSession) AccessToken() string { return "tok" }

func (f *fakeSession) initCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits
}

type fakeObjects struct {
	mu        sync.Mutex
	opts      int
	items     []model.Objekt
	fetchErr  error
	deleteErr error
	lastErr   string
	patched   map[string]any
}

var _ ObjectService = (*fakeObjects)(nil)

func (f *fakeObjects) FetchObjects(_ context.Context, opts ...service.FetchOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = len(opts)
	if f.fetchErr != nil {
		f.lastErr = errs.MsgLoad
	}
	return f.fetchErr
}

func (f *fakeObjects) FetchObject(_ context.Context, id string) (model.Objekt, error) {
	for _, it := range f.items {
		if id == "1" && it.ID() == 1 {
			return it, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeObjects) UpdateObjectField(_ context.Context, id, field string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "0" {
		f.lastErr = errs.MsgMissingID
		return errs.ErrInvalidID
	}
	f.patched = map[string]any{field: value}
	return nil
}

func (f *fakeObjects) DeleteObject(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		f.lastErr = errs.MsgFileDelete
	}
	return f.deleteErr
}

func (f *fakeObjects) GetFieldOptions(context.Context, string) ([]model.Choice, error) {
	return []model.Choice{{Text: "Entwurf", Value: "draft"}}, nil
}

func (f *fakeObjects) Items() []model.Objekt { return f.items }
func (f *fakeObjects) Total() int64          { return int64(len(f.items)) }
func (f *fakeObjects) TotalPages() int64     { return 1 }
func (f *fakeObjects) Page() int             { return 1 }
func (f *fakeObjects) PageSize() int         { return 10 }
func (f *fakeObjects) Query() string         { return "" }

func (f *fakeObjects) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *fakeObjects) snapshot() (int, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts, f.patched
}

func (f *fakeObjects) failDeletes(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

func newTestServer(t *testing.T, sess *fakeSession, objs *fakeObjects) *httptest.Server {
	t.Helper()
	log := zaptest.NewLogger(t)
	s := New(sess, objs, router.NewGuard(sess, log), "http://cms.local/", log)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestGuard_Redirects(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	srv := newTestServer(t, sess, &fakeObjects{})

	resp := do(t, http.MethodGet, srv.URL+"/", "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))

	resp = do(t, http.MethodGet, srv.URL+"/login", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/login", `{"email":"user@x","password":"pw"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/admin", "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	resp = do(t, http.MethodGet, srv.URL+"/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, 1, sess.initCount())
}

func TestLogin_Rejected(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeSession{}, &fakeObjects{})

	resp := do(t, http.MethodPost, srv.URL+"/login", `{"email":"a","password":"nope"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)
	require.Equal(t, errs.MsgInvalidCredentials, body.Error)

	resp = do(t, http.MethodPost, srv.URL+"/login", `not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminList_RendersRows(t *testing.T) {
	t.Parallel()

	var rec model.Objekt
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 1,
		"name": "Abendmahlskelch",
		"status": "published",
		"bewertung": 4,
		"abbildung": {"id": "F1", "filename_disk": "k.jpg", "type": "image/jpeg", "filename_download": "kelch.jpg"},
		"weitereAbbildungen": [{"id": 9, "directus_files_id": {"id": "F2", "type": "application/pdf"}}]
	}`), &rec))

	sess := &fakeSession{authed: true, admin: true}
	objs := &fakeObjects{items: []model.Objekt{rec}}
	srv := newTestServer(t, sess, objs)

	resp := do(t, http.MethodGet, srv.URL+"/admin?page=1&q=kelch&append=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	opts, _ := objs.snapshot()
	require.Equal(t, 3, opts)

	var list listResponse
	decode(t, resp, &list)
	require.Len(t, list.Items, 1)
	row := list.Items[0]
	require.Equal(t, "Veröffentlicht", row.StatusLabel)
	require.Equal(t, "Rein", row.RatingLabel)
	require.Equal(t, "http://cms.local/assets/F1?&width=150&height=150&fit=cover&quality=80&access_token=tok", row.Thumbnail)
	require.Len(t, row.Media, 2)
	require.Equal(t, "kelch.jpg", row.Media[0].Name)
	require.Equal(t, "pdf", string(row.Media[1].Kind))
	require.Equal(t, "http://cms.local/assets/F2?download=true&access_token=tok", row.Media[1].Download)

	resp = do(t, http.MethodGet, srv.URL+"/admin?page=x", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminList_LoadError(t *testing.T) {
	t.Parallel()

	objs := &fakeObjects{fetchErr: errs.ErrBackend}
	srv := newTestServer(t, &fakeSession{authed: true, admin: true}, objs)

	resp := do(t, http.MethodGet, srv.URL+"/admin", "")
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)
	require.Equal(t, errs.MsgLoad, body.Error)
}

func TestAdminMutations(t *testing.T) {
	t.Parallel()

	objs := &fakeObjects{}
	srv := newTestServer(t, &fakeSession{authed: true, admin: true}, objs)

	resp := do(t, http.MethodPatch, srv.URL+"/admin/objects/7", `{"field":"status","value":"draft"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, patched := objs.snapshot()
	require.Equal(t, map[string]any{"status": "draft"}, patched)

	resp = do(t, http.MethodPatch, srv.URL+"/admin/objects/0", `{"field":"status","value":"draft"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/admin/objects/7", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	objs.failDeletes(errs.ErrFileDelete)
	resp = do(t, http.MethodDelete, srv.URL+"/admin/objects/7", "")
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)
	require.Equal(t, errs.MsgFileDelete, body.Error)

	resp = do(t, http.MethodGet, srv.URL+"/admin/objects/5", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminLookups(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeSession{authed: true, admin: true}, &fakeObjects{})

	resp := do(t, http.MethodGet, srv.URL+"/admin/fields/status/options", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var choices []model.Choice
	decode(t, resp, &choices)
	require.Equal(t, "draft", choices[0].Value)

	resp = do(t, http.MethodGet, srv.URL+"/admin/categories", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cats struct {
		Tree   []model.OptionNode `json:"tree"`
		Lookup map[string]string  `json:"lookup"`
	}
	decode(t, resp, &cats)
	require.NotEmpty(t, cats.Tree)
	require.Equal(t, cats.Tree[0].Text, cats.Lookup[cats.Tree[0].Value])

	resp = do(t, http.MethodGet, srv.URL+"/admin/parishes", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionAndLogout(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{authed: true}
	srv := newTestServer(t, sess, &fakeObjects{})

	resp := do(t, http.MethodGet, srv.URL+"/session", "")
	var st service.SessionState
	decode(t, resp, &st)
	require.True(t, st.Authenticated)

	resp = do(t, http.MethodPost, srv.URL+"/logout", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.False(t, sess.Authenticated())
}

func TestRecover(t *testing.T) {
	t.Parallel()

	h := Recover(zaptest.NewLogger(t), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusOf(t *testing.T) {
	t.Parallel()

	cases := map[error]int{
		errs.ErrInvalidID:          http.StatusBadRequest,
		errs.ErrInvalidCredentials: http.StatusUnauthorized,
		errs.ErrUnauthorized:       http.StatusUnauthorized,
		errs.ErrForbidden:          http.StatusForbidden,
		errs.ErrNotFound:           http.StatusNotFound,
		errs.ErrFileDelete:         http.StatusBadGateway,
		errs.ErrBackend:            http.StatusBadGateway,
		context.Canceled:           http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, statusOf(err), err.Error())
	}
}
