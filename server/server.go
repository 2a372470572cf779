// Package server assembles the HTTP surface, the assistant pipeline
// and the background runners on top of the event store.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/voicecal/voicecal/internal/profile"
	"github.com/voicecal/voicecal/plugin/ai"
	"github.com/voicecal/voicecal/plugin/ai/nlp"
	"github.com/voicecal/voicecal/server/broadcast"
	"github.com/voicecal/voicecal/server/router/apiv1"
	"github.com/voicecal/voicecal/server/runner/reminder"
	"github.com/voicecal/voicecal/server/service/assistant"
	"github.com/voicecal/voicecal/store"
)

// Server is the voicecal HTTP server.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer     *echo.Echo
	hub            *broadcast.Hub
	reminderRunner *reminder.Runner
}

// NewServer wires the service graph. The LLM interpreter is attached
// only when credentials are configured; the keyword fallback is always
// present.
func NewServer(ctx context.Context, profile *profile.Profile, st *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	hub := broadcast.NewHub()

	var llm ai.Interpreter
	if profile.IsLLMEnabled() {
		llm = ai.NewOpenAIInterpreter(&ai.OpenAIConfig{
			BaseURL: profile.OpenAIBaseURL,
			APIKey:  profile.OpenAIAPIKey,
			Model:   profile.LLMModel,
		})
		slog.Info("llm interpreter enabled", "model", profile.LLMModel)
	} else {
		slog.Info("llm interpreter disabled, using keyword interpreter")
	}

	assistantService := assistant.NewService(profile, st, llm, nlp.NewInterpreter(), hub)
	apiv1.NewAPIV1Service(profile, st, assistantService, hub).RegisterRoutes(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": profile.Version})
	})

	s := &Server{
		Profile:    profile,
		Store:      st,
		echoServer: e,
		hub:        hub,
	}
	if profile.ReminderCron != "" {
		s.reminderRunner = reminder.NewRunner(st, hub, profile.ReminderCron)
	}
	return s, nil
}

// Start serves HTTP and starts the background runners. It blocks until
// ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s.reminderRunner != nil {
		if err := s.reminderRunner.Start(); err != nil {
			return err
		}
	}

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started", "address", address, "mode", s.Profile.Mode, "driver", s.Profile.Driver)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.Shutdown(context.Background())
		return nil
	})
	return g.Wait()
}

// Shutdown stops the runners and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if s.reminderRunner != nil {
		s.reminderRunner.Stop()
	}
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down http server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server stopped")
}
