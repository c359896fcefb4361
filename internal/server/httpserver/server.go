// Package httpserver exposes the session and the catalog list as a small JSON gateway behind
// the navigation guard.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jk100/archiv-admin/internal/errs"
	"github.com/jk100/archiv-admin/internal/model"
	"github.com/jk100/archiv-admin/internal/options"
	"github.com/jk100/archiv-admin/internal/router"
	"github.com/jk100/archiv-admin/internal/service"
)

// SessionService is the session as seen by the gateway.
type SessionService interface {
	router.SessionView
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context)
	State() service.SessionState
	AccessToken() string
}

// ObjectService is the catalog list as seen by the gateway.
type ObjectService interface {
	FetchObjects(ctx context.Context, opts ...service.FetchOption) error
	FetchObject(ctx context.Context, id string) (model.Objekt, error)
	UpdateObjectField(ctx context.Context, id, field string, value any) error
	DeleteObject(ctx context.Context, id string) error
	GetFieldOptions(ctx context.Context, field string) ([]model.Choice, error)
	Items() []model.Objekt
	Total() int64
	TotalPages() int64
	Page() int
	PageSize() int
	Query() string
	LastError() string
}

// Server holds the gateway dependencies.
type Server struct {
	sess      SessionService
	objs      ObjectService
	guard     *router.Guard
	assetBase string
	log       *zap.Logger
}

// New constructs the gateway. assetBase is the backend URL used for asset links.
func New(sess SessionService, objs ObjectService, guard *router.Guard, assetBase string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{sess: sess, objs: objs, guard: guard, assetBase: assetBase, log: log}
}

// Handler returns the routed handler wrapped in recover and logging middleware.
func (s *Server) Handler() http.Handler {
	home := router.MustLookup(router.NameHome)
	admin := router.MustLookup(router.NameAdmin)
	login := router.MustLookup(router.NameLogin)

	r := mux.NewRouter()
	r.Handle(home.Path, s.guarded(home, s.handleHome)).Methods(http.MethodGet)
	r.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)

	r.Handle(login.Path, s.guarded(login, s.handleLoginPage)).Methods(http.MethodGet)
	r.HandleFunc(login.Path, s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	r.Handle(admin.Path, s.guarded(admin, s.handleList)).Methods(http.MethodGet)
	r.Handle(admin.Path+"/objects/{id}", s.guarded(admin, s.handleGetObject)).Methods(http.MethodGet)
	r.Handle(admin.Path+"/objects/{id}", s.guarded(admin, s.handlePatchObject)).Methods(http.MethodPatch)
	r.Handle(admin.Path+"/objects/{id}", s.guarded(admin, s.handleDeleteObject)).Methods(http.MethodDelete)
	r.Handle(admin.Path+"/fields/{field}/options", s.guarded(admin, s.handleFieldOptions)).Methods(http.MethodGet)
	r.Handle(admin.Path+"/categories", s.guarded(admin, s.handleCategories)).Methods(http.MethodGet)
	r.Handle(admin.Path+"/parishes", s.guarded(admin, s.handleParishes)).Methods(http.MethodGet)

	return Recover(s.log, Logging(s.log, r))
}

// guarded runs the navigation guard for rt before next.
func (s *Server) guarded(rt router.Route, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := s.guard.Check(r.Context(), rt)
		if err != nil {
			s.log.Debug("guard aborted", zap.String("route", rt.Name), zap.Error(err))
			return
		}
		switch d {
		case router.RedirectLogin:
			http.Redirect(w, r, router.MustLookup(router.NameLogin).Path, http.StatusSeeOther)
		case router.RedirectHome:
			http.Redirect(w, r, router.MustLookup(router.NameHome).Path, http.StatusSeeOther)
		default:
			next(w, r)
		}
	})
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.State())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if err := s.guard.Ready(r.Context()); err != nil {
		return
	}
	writeJSON(w, http.StatusOK, s.sess.State())
}

func (s *Server) handleLoginPage(w http.ResponseWriter, _ *http.Request) {
	st := s.sess.State()
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": st.Authenticated, "last_error": st.LastError})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	if err := s.guard.Ready(r.Context()); err != nil {
		return
	}
	if err := s.sess.Login(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, err, s.sess.State().LastError)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.State())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sess.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type listResponse struct {
	Items      []objectRow `json:"items"`
	Total      int64       `json:"total"`
	TotalPages int64       `json:"total_pages"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Query      string      `json:"query"`
}

// handleList serves one page: ?page=&per_page=&q=&append=true.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var opts []service.FetchOption
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid page"})
			return
		}
		opts = append(opts, service.WithPage(n))
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid per_page"})
			return
		}
		opts = append(opts, service.WithPageSize(n))
	}
	if _, ok := q["q"]; ok {
		opts = append(opts, service.WithQuery(q.Get("q")))
	}
	if q.Get("append") == "true" {
		opts = append(opts, service.WithAppend())
	}

	if err := s.objs.FetchObjects(r.Context(), opts...); err != nil {
		writeError(w, err, s.objs.LastError())
		return
	}

	lookup := s.categoryLookup()
	token := s.sess.AccessToken()
	items := s.objs.Items()
	rows := make([]objectRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, newObjectRow(it, lookup, s.assetBase, token))
	}
	writeJSON(w, http.StatusOK, listResponse{
		Items:      rows,
		Total:      s.objs.Total(),
		TotalPages: s.objs.TotalPages(),
		Page:       s.objs.Page(),
		PageSize:   s.objs.PageSize(),
		Query:      s.objs.Query(),
	})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	rec, err := s.objs.FetchObject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, s.objs.LastError())
		return
	}
	writeJSON(w, http.StatusOK, newObjectRow(rec, s.categoryLookup(), s.assetBase, s.sess.AccessToken()))
}

type patchRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

func (s *Server) handlePatchObject(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Field == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	var value any
	if len(req.Value) > 0 {
		if err := json.Unmarshal(req.Value, &value); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid value"})
			return
		}
	}
	if err := s.objs.UpdateObjectField(r.Context(), mux.Vars(r)["id"], req.Field, value); err != nil {
		writeError(w, err, s.objs.LastError())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	if err := s.objs.DeleteObject(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err, s.objs.LastError())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFieldOptions(w http.ResponseWriter, r *http.Request) {
	choices, err := s.objs.GetFieldOptions(r.Context(), mux.Vars(r)["field"])
	if errors.Is(err, errs.ErrUnauthorized) {
		writeError(w, err, s.objs.LastError())
		return
	}
	writeJSON(w, http.StatusOK, choices)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	tree, err := options.Categories()
	if err != nil {
		s.log.Error("load categories", zap.Error(err))
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tree":   tree,
		"lookup": service.BuildCategoryLookup(tree),
	})
}

func (s *Server) handleParishes(w http.ResponseWriter, _ *http.Request) {
	list, err := options.Parishes()
	if err != nil {
		s.log.Error("load parishes", zap.Error(err))
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) categoryLookup() map[string]string {
	tree, err := options.Categories()
	if err != nil {
		s.log.Warn("load categories", zap.Error(err))
		return nil
	}
	return service.BuildCategoryLookup(tree)
}
