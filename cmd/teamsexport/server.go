package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/optiononetech/teams-chat-export/internal/constants"
	"github.com/optiononetech/teams-chat-export/internal/export"
	"github.com/optiononetech/teams-chat-export/internal/metrics"
	"github.com/optiononetech/teams-chat-export/internal/middleware"
	"github.com/optiononetech/teams-chat-export/internal/models"
	"github.com/optiononetech/teams-chat-export/internal/progress"
	"github.com/optiononetech/teams-chat-export/internal/security"
	"github.com/optiononetech/teams-chat-export/pkg/graph"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router    *mux.Router
	logger    *logrus.Logger
	client    graph.Client
	assembler *export.Assembler
	tracker   *progress.Tracker
	cfg       *models.Config
	server    *http.Server

	// exports run detached from the request that started them
	jobCtx context.Context
}

func NewServer(jobCtx context.Context, cfg *models.Config, client graph.Client, assembler *export.Assembler, tracker *progress.Tracker, logger *logrus.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		client:    client,
		assembler: assembler,
		tracker:   tracker,
		cfg:       cfg,
		jobCtx:    jobCtx,
	}

	s.router.Use(middleware.Observability(logger))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/chats", s.handleListChats()).Methods(http.MethodGet)
	api.HandleFunc("/chats/{id}/export", s.handleStartExport()).Methods(http.MethodPost)
	api.HandleFunc("/exports/{token}/progress", s.handleProgress()).Methods(http.MethodGet)
	api.HandleFunc("/exports/{token}/ws", s.handleProgressSocket()).Methods(http.MethodGet)
	api.HandleFunc("/exports/{key}/download", s.handleDownload()).Methods(http.MethodGet)

	s.router.HandleFunc("/public/{key}/{file:.*}", s.handlePublicFile()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutS * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Warn("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

type chatSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	ChatType string   `json:"chatType"`
	Members  []string `json:"members"`
}

func (s *Server) handleListChats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chats, err := s.client.ListChats(r.Context())
		if err != nil {
			s.logger.WithError(err).Error("Failed to list chats")
			s.writeError(w, http.StatusBadGateway, "failed to list chats")
			return
		}

		summaries := make([]chatSummary, 0, len(chats))
		for _, chat := range chats {
			members, err := s.client.ListChatMembers(r.Context(), chat.ID)
			if err != nil {
				s.logger.WithError(err).WithField("chat_id", chat.ID).Warn("Failed to list chat members")
			}
			names := make([]string, 0, len(members))
			for _, m := range members {
				names = append(names, m.DisplayName)
			}
			summaries = append(summaries, chatSummary{
				ID:       chat.ID,
				Title:    chat.Title(),
				ChatType: chat.ChatType,
				Members:  names,
			})
		}

		s.writeJSON(w, http.StatusOK, summaries)
	}
}

func parseWindowDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func (s *Server) handleStartExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID := mux.Vars(r)["id"]

		since, err := parseWindowDate(r.URL.Query().Get("since"))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid or missing since date")
			return
		}
		until, err := parseWindowDate(r.URL.Query().Get("until"))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid or missing until date")
			return
		}
		if until.Before(since) {
			s.writeError(w, http.StatusBadRequest, "until precedes since")
			return
		}

		key := export.JobKey(chatID, since, until)
		token := s.tracker.Start(key)

		go func() {
			if _, err := s.assembler.Export(s.jobCtx, chatID, since, until, token); err != nil {
				s.logger.WithError(err).WithField("job_key", key).Error("Export job failed")
			}
		}()

		s.writeJSON(w, http.StatusAccepted, map[string]string{
			"jobKey": key,
			"token":  token,
		})
	}
}

func (s *Server) handleProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mux.Vars(r)["token"]

		offset := 0
		if v := r.URL.Query().Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				s.writeError(w, http.StatusBadRequest, "invalid offset")
				return
			}
			offset = n
		}

		snap, ok := s.tracker.Snapshot(token, offset)
		if !ok {
			s.writeError(w, http.StatusNotFound, "unknown export token")
			return
		}

		s.writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) handleDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		if err := security.ValidateFileName(key + ".zip"); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid job key")
			return
		}

		archive := s.assembler.ArchivePath(key)
		if _, err := os.Stat(archive); err != nil {
			s.writeError(w, http.StatusNotFound, "archive not found")
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, key))
		http.ServeFile(w, r, archive)
	}
}

func (s *Server) handlePublicFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		key, file := vars["key"], vars["file"]

		if err := security.ValidateFileName(key); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid job key")
			return
		}

		base := s.assembler.WorkDir(key)
		if err := security.ValidateFilePathWithBase(file, base); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid file path")
			return
		}

		path := filepath.Join(base, filepath.FromSlash(file))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			s.writeError(w, http.StatusNotFound, "file not found")
			return
		}

		ext := strings.ToLower(filepath.Ext(path))
		mimeType, ok := constants.MimeTypes[ext]
		if !ok {
			mimeType = constants.DefaultMimeType
		}
		w.Header().Set("Content-Type", mimeType)
		http.ServeFile(w, r, path)
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, metrics.GetAllMetrics())
	}
}
