package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// httpServer runs an http.Server as a Task, shutting it down when ctx is
// canceled.
type httpServer struct {
	server *http.Server
	logger *slog.Logger
}

func newHTTPServer(addr string, handler http.Handler, logger *slog.Logger) *httpServer {
	return &httpServer{
		server: &http.Server{Addr: addr, Handler: handler},
		logger: logger,
	}
}

// Run implements Task.
func (s *httpServer) Run(ctx context.Context) error {
	errCh := make(chan error)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shut down server", slog.Any("err", err))
		}
		return nil
	}
}
