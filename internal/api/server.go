// Package api exposes the reconciled message feed to the chat UI and proxies
// signed envelopes to the relay.
package api

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/feed"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/metrics"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/model"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/relay"
)

// MessageFeed is the read side the handlers need from the feed.
type MessageFeed interface {
	Snapshot() []model.ChatMessage
	Status() feed.Status
}

// Submitter sends a signed envelope on its way; nil disables the send path.
type Submitter interface {
	Submit(ctx context.Context, envelopeXDR string) (relay.Result, error)
}

type Server struct {
	httpServer *http.Server
}

func NewServer(addr string, f MessageFeed, s Submitter) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/messages", messagesHandler(f, s))

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
	}
}

func (s *Server) Start() error {
	logrus.WithField("addr", s.httpServer.Addr).Info("api listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
