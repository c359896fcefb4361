// Command ak is a command line client for the church archive catalog.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/jk100/archiv-admin/internal/config"
	"github.com/jk100/archiv-admin/internal/directus"
	"github.com/jk100/archiv-admin/internal/errs"
	"github.com/jk100/archiv-admin/internal/media"
	"github.com/jk100/archiv-admin/internal/migrate"
	"github.com/jk100/archiv-admin/internal/model"
	"github.com/jk100/archiv-admin/internal/options"
	"github.com/jk100/archiv-admin/internal/repository"
	"github.com/jk100/archiv-admin/internal/repository/file"
	"github.com/jk100/archiv-admin/internal/repository/postgres"
	"github.com/jk100/archiv-admin/internal/service"
)

// ---- wiring ----

type app struct {
	sess *service.Session
	objs *service.Objects
	base string
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// openStore picks the postgres slot when a DSN is configured and the file store otherwise.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.CredentialRepository, func(), error) {
	if cfg.DSN == "" {
		return file.NewCredentialRepo(cfg.StoreDir), func() {}, nil
	}
	if _, err := migrate.Up(ctx, cfg.DSN, log); err != nil {
		return nil, nil, err
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open credential store: %w", err)
	}
	return postgres.NewCredentialRepo(db), db.Close, nil
}

func newApp(cfg config.Config, store repository.CredentialRepository, log *zap.Logger) *app {
	client := directus.New(cfg.DirectusURL, directus.WithLogger(log))
	sess := service.NewSession(client, store, cfg.AdminRoleID, log)
	objs := service.NewObjects(client.WithTokenSource(sess), sess, log)
	return &app{sess: sess, objs: objs, base: client.BaseURL()}
}

// ready replays the stored session and fails when it is not usable.
func (a *app) ready(ctx context.Context) error {
	if err := a.sess.Initialize(ctx); err != nil {
		return err
	}
	if !a.sess.Authenticated() {
		return errors.New("not logged in (run: ak login -u <email>)")
	}
	return nil
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// parseValue reads a field value given on the command line: JSON when it parses, a plain
// string otherwise.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// readPassword prompts on the terminal without echo, or reads one line from a pipe.
func readPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(out, "Passwort: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

type row struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Rating   string `json:"bewertung"`
	Category string `json:"kategorie,omitempty"`
	Files    int    `json:"dateien"`
}

func summarize(rec model.Objekt, categories map[string]string) row {
	return row{
		ID:       rec.ID(),
		Name:     rec.String(model.FieldName),
		Status:   model.StatusLabel(rec.String(model.FieldStatus)),
		Rating:   model.RatingLabel(rec.Rating()),
		Category: categories[rec.String(model.FieldCategory)],
		Files:    len(service.AttachedFiles(rec)),
	}
}

type link struct {
	FileID string     `json:"file_id"`
	Kind   media.Kind `json:"kind"`
	Name   string     `json:"name"`
	URL    string     `json:"url"`
}

// links renders the asset URLs of every media reference of rec. A positive size yields
// thumbnails instead of full assets.
func links(rec model.Objekt, base, token string, size int, download bool) []link {
	refs := append([]media.Ref{media.Parse(rec[model.FieldPrimaryImage])}, media.ParseList(rec[model.FieldSecondaryImages])...)
	out := []link{}
	for _, r := range refs {
		if r.FileID() == "" {
			continue
		}
		l := link{FileID: r.FileID(), Kind: media.Classify(r), Name: media.DisplayName(r)}
		if size > 0 {
			l.URL = media.ThumbnailURL(r, base, token, size, size)
		} else {
			l.URL = media.AssetURL(r, base, token, download)
		}
		out = append(out, l)
	}
	return out
}

func categoryLookup() map[string]string {
	tree, err := options.Categories()
	if err != nil {
		return nil
	}
	return service.BuildCategoryLookup(tree)
}

func usage() {
	fmt.Fprintf(os.Stderr, `ak CLI
Usage:
  ak [-url URL] [-store DIR] [-dsn DSN] [-v] <cmd> [args]

Commands:
  version
  login       -u <email> [-p <password>]        (prompts when -p is missing)
  logout
  whoami
  list        [-page N] [-per-page N] [-q <text>]
  get         -id <id>
  set         -id <id> -field <name> -value <json|text>
  rm          -id <id>                          (deletes the record and its files)
  options     -field <name>
  categories
  url         -id <id> [-thumb N] [-download]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration and dispatches subcommands.
func main() {
	cfg := config.Load()

	baseURL := flag.String("url", cfg.DirectusURL, "backend URL")
	storeDir := flag.String("store", cfg.StoreDir, "credential store directory")
	dsn := flag.String("dsn", cfg.DSN, "PostgreSQL DSN of the credential store (optional)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	if cmd == "version" {
		fmt.Printf("ak %s (%s)\n", version, buildDate)
		return
	}

	cfg.DirectusURL, cfg.StoreDir, cfg.DSN = *baseURL, *storeDir, *dsn
	log := newLogger(*verbose)
	defer func() { _ = log.Sync() }()
	if err := cfg.Validate(log); err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		fail(err)
	}
	defer closeStore()
	a := newApp(cfg, store, log)

	switch cmd {

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *u == "" {
			fmt.Fprintln(os.Stderr, "need -u")
			os.Exit(1)
		}
		pw := *p
		if pw == "" {
			if pw, err = readPassword(os.Stdin, os.Stderr); err != nil {
				fail(err)
			}
		}
		if err := a.sess.Login(ctx, *u, pw); err != nil {
			fail(errors.New(a.sess.LastError()))
		}
		printJSON(a.sess.State())

	case "logout":
		_ = a.sess.Initialize(ctx)
		a.sess.Logout(ctx)
		fmt.Println("ok")

	case "whoami":
		if err := a.ready(ctx); err != nil {
			fail(err)
		}
		printJSON(a.sess.State())

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		page := fs.Int("page", 1, "page")
		perPage := fs.Int("per-page", service.DefaultPageSize, "items per page")
		q := fs.String("q", "", "search text")
		_ = fs.Parse(args)
		if err := a.ready(ctx); err != nil {
			fail(err)
		}
		if err := a.objs.FetchObjects(ctx, service.WithPage(*page), service.WithPageSize(*perPage), service.WithQuery(*q)); err != nil {
			fail(errors.New(a.objs.LastError()))
		}
		lookup := categoryLookup()
		rows := []row{}
		for _, it := range a.objs.Items() {
			rows = append(rows, summarize(it, lookup))
		}
		printJSON(map[string]any{
			"items":       rows,
			"total":       a.objs.Total(),
			"page":        a.objs.Page(),
			"total_pages": a.objs.TotalPages(),
		})

	case "get":
		id := idFlag("get", args)
		if err := a.ready(ctx); err != nil {
			fail(err)
		}
		rec, err := a.objs.FetchObject(ctx, id)
		if err != nil {
			fail(err)
		}
		printJSON(rec)

	case "set":
		fs := flag.NewFlagSet("set", flag.ExitOnError)
		id := fs.String("id", "", "object id")
		field := fs.String("field", "", "field name")
		value := fs.String("value", "", "value (JSON or text)")
		_ = fs.Parse(args)
		if *field == "" {
			fmt.Fprintln(os.Stderr, "need -field")
			os.Exit(1)
		}
		if err := a.ready(ctx); err != nil {
			fail(err)
		}
		if err := a.objs.UpdateObjectField(ctx, *id, *field, parseValue(*value)); err != nil {
			fail(errors.New(a.objs.LastError()))
		}
		fmt.Println("ok")

	case "rm":
		id := idFlag("rm", args)
		if err := a.ready(ctx); err != nil {
			fail(err)
		}
		if _, err := a.objs.FetchObject(ctx, id); err != nil {
			fail(err)
		}
		if err := a.objs.DeleteObject(ctx, id); err != nil {
			fail(errors.New(a.objs.LastError()))
		}
		fmt.Println("ok")

	case "options":
		fs := flag.NewFlagSet("options", flag.ExitOnError)
		field := fs.String("field", "", "field name")
		_ = fs.Parse(args)
		if err := a.ready(ctx); err != nil {
			fail(err)
		}
		choices, err := a.objs.GetFieldOptions(ctx, *field)
		if err != nil {
			fail(errors.New(a.objs.LastError()))
		}
		printJSON(choices)

	case "categories":
		printJSON(categoryLookup())

	case "url":
		fs := flag.NewFlagSet("url", flag.ExitOnError)
		id := fs.String("id", "", "object id")
		thumb := fs.Int("thumb", 0, "thumbnail edge length (0 = full asset)")
		download := fs.Bool("download", false, "force download")
		_ = fs.Parse(args)
		if err := a.ready(ctx); err != nil {
			fail(err)
		}
		rec, err := a.objs.FetchObject(ctx, *id)
		if err != nil {
			fail(err)
		}
		printJSON(links(rec, a.base, a.sess.AccessToken(), *thumb, *download))

	default:
		usage()
	}
}

// ---- helpers ----

func idFlag(name string, args []string) string {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	id := fs.String("id", "", "object id")
	_ = fs.Parse(args)
	if _, err := strconv.ParseInt(*id, 10, 64); err != nil {
		fail(fmt.Errorf("%w: %q", errs.ErrInvalidID, *id))
	}
	return *id
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
