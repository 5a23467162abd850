package main

import (
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/middleware"
	"google.golang.org/grpc"
)

// Server adapts the chat service to HTTP and gRPC and owns session issuing.
type Server struct {
	chat    *chat.Service
	auth    *auth.JWTManager
	limiter *middleware.LimiterStore

	// secureCookies marks the session cookie Secure when serving over TLS.
	secureCookies bool
}

// newServer returns a ready-to-use Server wired with the chat service, auth
// manager and login limiter.
func newServer(svc *chat.Service, authMgr *auth.JWTManager, limiter *middleware.LimiterStore) *Server {
	return &Server{chat: svc, auth: authMgr, limiter: limiter}
}

// issueSession signs a token for caller.
func (s *Server) issueSession(caller chat.Caller) (string, time.Time, error) {
	return s.auth.GenerateToken(caller.UserID, caller.Phone, caller.Name)
}

// registerService registers the ChatService on the given gRPC server.
func registerService(g *grpc.Server, srv *Server) {
	g.RegisterService(&chatServiceDesc, srv)
}
