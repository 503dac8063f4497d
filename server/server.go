package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/phturb/campaign-codex-backend-go/codex"
	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
	modelwebsocket "github.com/phturb/campaign-codex-backend-go/model/websocket"
)

type server struct {
	srv *http.Server
	up  *websocket.Upgrader
	hub *Hub
	svc *codex.Services
}

func NewServer(svc *codex.Services, hub *Hub) (*server, error) {
	if svc == nil || hub == nil {
		return nil, errors.New("server needs services and a hub")
	}
	return &server{
		up: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // origins are enforced by the CORS layer
			},
		},
		hub: hub,
		svc: svc,
	}, nil
}

func (s *server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		slog.Error(err.Error())
		return
	}
	defer conn.Close()
	c := s.hub.register(conn)
	defer s.hub.unregister(c)

	for {
		mt, m, err := conn.ReadMessage()
		if err != nil || mt == websocket.CloseMessage {
			slog.Info(fmt.Sprintf("closing websocket connection err : %s", err))
			break
		}
		var wm modelwebsocket.Message
		if err := json.Unmarshal(m, &wm); err != nil {
			slog.Warn(fmt.Sprintf("unable to unmarshal the received message : %v", err))
			continue
		}
		if !s.hub.handleMessage(c, &wm) {
			slog.Warn("no handlers processed the websocket message")
		}
	}
}

// Handler builds the full routing tree wrapped in CORS and panic recovery.
func (s *server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, codex.Ok(map[string]bool{"ok": true}))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebsocket)

	api := router.PathPrefix("/api").Subrouter()
	registerCRUD(api, "/editions", s.svc.Entities.Editions)
	registerCRUD(api, "/campaigns", s.svc.Entities.Campaigns)
	registerCRUD(api, "/adventures", s.svc.Entities.Adventures)
	registerCRUD(api, "/sessions", s.svc.Entities.Sessions)
	registerCRUD(api, "/characters", s.svc.Entities.Characters)
	registerCRUD(api, "/locations", s.svc.Entities.Locations)
	registerCRUD(api, "/quests", s.svc.Entities.Quests)
	registerCRUD(api, "/magic-items", s.svc.Entities.MagicItems)

	s.registerViews(api)
	s.registerRelations(api)
	s.registerDiary(api)
	s.registerWiki(api)
	s.registerAssignments(api)
	api.HandleFunc("/audit", s.handleAudit).Methods(http.MethodGet)

	origins := internal.Config().Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(router),
	)
}

func (s *server) GetHTTPServer() (*http.Server, error) {
	if s.srv == nil {
		return nil, errors.New("http serer is not started yet")
	}
	return s.srv, nil
}

func (s *server) Start(ctx context.Context) chan error {
	serverAddr := "0.0.0.0:" + internal.Config().Server.Port
	slog.Info("starting server on port " + serverAddr)
	slog.Info("handling websocket on path : '/ws'")
	s.srv = &http.Server{
		Handler:      s.Handler(),
		Addr:         serverAddr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn(fmt.Sprintf("server shutdown : %s", err.Error()))
		}
	}()

	return errCh
}

func (s *server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Auditor.Audit(r.Context())
	respond(w, http.StatusOK, report, err)
}

var kindsByCollection = map[string]model.EntityKind{
	"characters":  model.KindCharacter,
	"locations":   model.KindLocation,
	"quests":      model.KindQuest,
	"magic-items": model.KindMagicItem,
}
