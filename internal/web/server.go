package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/resy-sniper/internal/auth"
	"github.com/example/resy-sniper/internal/creds"
	"github.com/example/resy-sniper/internal/snipes"
)

//go:embed templates/*.html static/*
var fs embed.FS

type Server struct {
	Auth   *auth.Store
	Snipes *snipes.Repo
	Creds  *creds.Store

	BaseURL string
}

type tmplData struct {
	Title string
	User  int64

	Flash  string
	Snipes []snipes.Record
	Snipe  snipes.Record

	TimeZone string
	Zones    []string
	HasCreds bool
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/static/", http.FileServer(http.FS(fs)))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("/snipes/new", s.Auth.RequireAuth(http.HandlerFunc(s.handleSnipeNew)))
	mux.Handle("/snipes/create", s.Auth.RequireAuth(http.HandlerFunc(s.handleSnipeCreate)))
	mux.Handle("/credentials", s.Auth.RequireAuth(http.HandlerFunc(s.handleCredentials)))

	return mux
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	recs, err := s.Snipes.ListByUser(r.Context(), uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/snipes.html", tmplData{
		Title:  "Snipes",
		User:   uid,
		Snipes: recs,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		id, err := s.Auth.Authenticate(r.Context(), username, password)
		if err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleSnipeNew(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	s.render(w, "templates/new_snipe.html", tmplData{
		Title: "New Snipe",
		User:  uid,
		Snipe: snipes.Record{
			PartySize:   2,
			DesiredTime: "19:00",
			ReleaseTime: "10:00",
		},
	})
}

func (s *Server) handleSnipeCreate(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// A snipe must not be queued for a user with no registered credentials.
	if _, err := s.Creds.Lookup(r.Context(), uid); err != nil {
		if errors.Is(err, creds.ErrNotFound) {
			s.render(w, "templates/new_snipe.html", tmplData{
				Title: "New Snipe", User: uid,
				Flash: "Register your Resy credentials first.",
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	venueID, _ := strconv.ParseInt(strings.TrimSpace(r.FormValue("venue_id")), 10, 64)
	partySize, _ := strconv.Atoi(r.FormValue("party_size"))

	resDate, err := time.Parse("2006-01-02", r.FormValue("reservation_date"))
	if err != nil {
		s.render(w, "templates/new_snipe.html", tmplData{Title: "New Snipe", User: uid, Flash: "Invalid reservation date"})
		return
	}

	rec := snipes.Record{
		UserID:          uid,
		VenueID:         venueID,
		PartySize:       partySize,
		ReservationDate: resDate,
		DesiredTime:     strings.TrimSpace(r.FormValue("desired_time")),
		ReleaseTime:     strings.TrimSpace(r.FormValue("release_time")),
	}
	if err := rec.Request().Validate(); err != nil {
		s.render(w, "templates/new_snipe.html", tmplData{Title: "New Snipe", User: uid, Flash: err.Error(), Snipe: rec})
		return
	}

	if _, err := s.Snipes.Create(r.Context(), rec); err != nil {
		log.Printf("web: create snipe: %v", err)
		s.render(w, "templates/new_snipe.html", tmplData{Title: "New Snipe", User: uid, Flash: "Failed to create snipe", Snipe: rec})
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		data := tmplData{Title: "Credentials", User: uid, Zones: creds.ZoneNames(), TimeZone: "east"}
		if c, err := s.Creds.Lookup(r.Context(), uid); err == nil {
			data.HasCreds = true
			if c.TimeZone != "" {
				data.TimeZone = c.TimeZone
			}
		}
		s.render(w, "templates/creds.html", data)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c := creds.Credentials{
			APIKey:    strings.TrimSpace(r.FormValue("api_key")),
			AuthToken: strings.TrimSpace(r.FormValue("auth_token")),
			TimeZone:  strings.TrimSpace(r.FormValue("timezone")),
		}
		if c.APIKey == "" || c.AuthToken == "" {
			s.render(w, "templates/creds.html", tmplData{
				Title: "Credentials", User: uid, Zones: creds.ZoneNames(),
				Flash: "API key and auth token are required",
			})
			return
		}
		if err := s.Creds.Save(r.Context(), uid, c); err != nil {
			log.Printf("web: save credentials: %v", err)
			http.Error(w, "failed to save credentials", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	fmt.Printf("listening on %s\n", addr)
	return srv.ListenAndServe()
}
