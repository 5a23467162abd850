package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/apperr"
	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const sessionCookie = "session"

// context key type for storing the caller in context
type callerContextKey struct{}

func withCaller(ctx context.Context, c chat.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

// callerFromContext returns the authenticated caller, or the zero Caller which
// the chat service rejects as unauthenticated.
func callerFromContext(ctx context.Context) chat.Caller {
	c, _ := ctx.Value(callerContextKey{}).(chat.Caller)
	return c
}

func callerFromClaims(c *auth.Claims) chat.Caller {
	return chat.Caller{UserID: c.UserID, Name: c.Name, Phone: c.Phone}
}

// bearerToken strips the scheme from an Authorization value.
func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// authUnaryInterceptor enforces a session token on every method except Login.
func authUnaryInterceptor(j *auth.JWTManager) grpc.UnaryServerInterceptor {
	allowed := map[string]bool{
		methodLogin: true,
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if allowed[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		token := bearerToken(authHeaders[0])
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		claims, err := j.VerifyToken(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, apperr.ErrUnauthenticated.Message)
		}

		return handler(withCaller(ctx, callerFromClaims(claims)), req)
	}
}

// requireSession is the HTTP counterpart of authUnaryInterceptor. The token
// comes from the session cookie or an Authorization bearer header.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			if c, err := r.Cookie(sessionCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			writeError(w, apperr.ErrUnauthenticated)
			return
		}

		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			writeError(w, apperr.ErrUnauthenticated)
			return
		}
		next(w, r.WithContext(withCaller(r.Context(), callerFromClaims(claims))))
	}
}

// statusRecorder captures the response code for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs method, path, status and duration for every request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

// logUnaryInterceptor logs failed RPCs.
func logUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Printf("%s %s %s", info.FullMethod, status.Code(err), time.Since(start).Round(time.Microsecond))
		}
		return resp, err
	}
}
