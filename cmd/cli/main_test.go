package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/jk100/archiv-admin/internal/config"
	"github.com/jk100/archiv-admin/internal/model"
	"github.com/jk100/archiv-admin/internal/repository/file"
	"github.com/jk100/archiv-admin/internal/service"
)

func Test_parseValue(t *testing.T) {
	t.Parallel()

	if v := parseValue("4"); v != float64(4) {
		t.Fatalf("number: %#v", v)
	}
	if v := parseValue("null"); v != nil {
		t.Fatalf("null: %#v", v)
	}
	if v := parseValue(`"x"`); v != "x" {
		t.Fatalf("json string: %#v", v)
	}
	if v := parseValue("Zurück zur Autorin"); v != "Zurück zur Autorin" {
		t.Fatalf("plain text: %#v", v)
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = old }()

	printJSON(map[string]any{"a": 1})
	_ = w.Close()
	out, _ := io.ReadAll(r)

	var m map[string]any
	if json.Unmarshal(out, &m) != nil || m["a"] != float64(1) {
		t.Fatalf("printJSON produced invalid json: %s", string(out))
	}
	if !bytes.Contains(out, []byte("\n  ")) {
		t.Fatalf("printJSON should indent")
	}
}

func Test_readPassword_FromPipe(t *testing.T) {
	t.Parallel()

	r, w, _ := os.Pipe()
	go func() { _, _ = io.WriteString(w, "geheim\r\n"); _ = w.Close() }()
	pw, err := readPassword(r, io.Discard)
	if err != nil || pw != "geheim" {
		t.Fatalf("readPassword: %q %v", pw, err)
	}
}

func Test_summarize_And_links(t *testing.T) {
	t.Parallel()

	var rec model.Objekt
	raw := `{"id":3,"name":"Taufschale","status":"back-to-author","bewertung":null,"kategorie":"k1",
		"abbildung":"8cbb43fe-4cdf-4991-8352-c461779cec02",
		"weitereAbbildungen":[{"id":1,"directus_files_id":{"id":"0b5d3a4e-7a51-4b8b-9c1e-2a0f6f5d2b10","type":"video/mp4","filename_download":"film.mp4"}}]}`
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatal(err)
	}

	r := summarize(rec, map[string]string{"k1": "Taufe"})
	if r.Status != "Zurück zur Autorin" || r.Rating != "-" || r.Category != "Taufe" || r.Files != 2 {
		t.Fatalf("summary: %+v", r)
	}

	ls := links(rec, "http://cms/", "T", 0, true)
	if len(ls) != 2 {
		t.Fatalf("links: %+v", ls)
	}
	if ls[0].URL != "http://cms/assets/8cbb43fe-4cdf-4991-8352-c461779cec02?download=true&access_token=T" || ls[0].Name != "Datei" {
		t.Fatalf("primary link: %+v", ls[0])
	}
	if ls[1].Kind != "video" || ls[1].Name != "film.mp4" {
		t.Fatalf("secondary link: %+v", ls[1])
	}

	thumbs := links(rec, "http://cms", "T", 64, false)
	if !strings.Contains(thumbs[0].URL, "&width=64&height=64&fit=cover&quality=80&access_token=T") {
		t.Fatalf("thumbnail: %s", thumbs[0].URL)
	}
}

func Test_openStore_DefaultsToFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, closeStore, err := openStore(context.Background(), config.Config{StoreDir: dir}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer closeStore()
	if _, ok := store.(*file.CredentialRepo); !ok {
		t.Fatalf("want file store, got %T", store)
	}
}

// fakeBackend answers the handful of endpoints the CLI flow touches.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/login":
			_, _ = io.WriteString(w, `{"data":{"access_token":"A","refresh_token":"R","expires":900000}}`)
		case r.URL.Path == "/users/me":
			_, _ = io.WriteString(w, `{"data":{"id":"u1","email":"a@b.c","role":{"id":"admin-role"}}}`)
		case r.URL.Path == "/items/objekt" && r.URL.Query().Get("aggregate[count]") != "":
			_, _ = io.WriteString(w, `{"data":[{"count":"1"}]}`)
		case r.URL.Path == "/items/objekt":
			if r.Header.Get("Authorization") != "Bearer A" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"data":[{"id":1,"name":"Kelch","status":"draft"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func Test_app_LoginPersistsAndReplays(t *testing.T) {
	t.Parallel()

	srv := fakeBackend(t)
	dir := t.TempDir()
	cfg := config.Config{DirectusURL: srv.URL, AdminRoleID: "admin-role", StoreDir: dir}
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	first := newApp(cfg, file.NewCredentialRepo(dir), log)
	if err := first.ready(ctx); err == nil {
		t.Fatalf("want not-logged-in error before login")
	}
	if err := first.sess.Login(ctx, "a@b.c", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, service.StorageSlot+".json")); err != nil {
		t.Fatalf("credential record not written: %v", err)
	}

	second := newApp(cfg, file.NewCredentialRepo(dir), log)
	if err := second.ready(ctx); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.sess.IsAdmin() {
		t.Fatalf("want admin after replay")
	}
	if err := second.objs.FetchObjects(ctx); err != nil {
		t.Fatalf("list: %v (%s)", err, second.objs.LastError())
	}
	if n := len(second.objs.Items()); n != 1 || second.objs.Total() != 1 {
		t.Fatalf("list result: %d items, total %d", n, second.objs.Total())
	}
}
