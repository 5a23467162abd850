package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/config"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/data/mongodata"
	"github.com/PaulBabatuyi/pairchat/internal/db"
	"github.com/PaulBabatuyi/pairchat/internal/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	svc, closeStore, err := openService(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer closeStore()

	// JWT_KEYS enables rotation; JWT_SECRET alone signs without a kid.
	var jwtMgr *auth.JWTManager
	if len(cfg.JWTKeys) > 0 {
		jwtMgr = auth.NewJWTManagerFromKeys(cfg.JWTKeys, cfg.JWTActiveKid, cfg.SessionTTL)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL)
	}

	// small burst to allow a couple of quick retries
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	defer limiterStore.Stop()

	srv := newServer(svc, jwtMgr, limiterStore)
	srv.secureCookies = cfg.TLSEnabled()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		var err error
		if cfg.TLSEnabled() {
			err = httpServer.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server exit: %v", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcServer, err = newGRPCServer(cfg, srv, jwtMgr, limiterStore)
		if err != nil {
			log.Fatalf("failed to configure gRPC: %v", err)
		}
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("failed to listen: %v", err)
		}
		go func() {
			log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				log.Fatalf("gRPC server exit: %v", err)
			}
		}()
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

// openService connects the configured backend, prepares its schema or
// indexes, and builds the chat service over it.
func openService(ctx context.Context, cfg config.Config) (*chat.Service, func(), error) {
	if cfg.UseMongo() {
		client, err := db.NewMongo(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if err := client.CreateIndexes(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, nil, err
		}
		counters := client.CountersCollection()
		svc := chat.NewService(
			mongodata.NewUsersStore(client.UsersCollection(), counters),
			mongodata.NewChatsStore(client.ChatsCollection(), client.UsersCollection(), client.MessagesCollection(), counters),
			mongodata.NewMessagesStore(client.MessagesCollection(), client.UsersCollection(), counters),
		)
		log.Printf("using MongoDB database %s", cfg.MongoDatabase)
		return svc, func() { _ = client.Close(context.Background()) }, nil
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := sqlDB.CreateSchema(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	svc := chat.NewService(
		data.NewUsersStore(sqlDB.SQL()),
		data.NewChatsStore(sqlDB.SQL()),
		data.NewMessagesStore(sqlDB.SQL()),
	)
	log.Printf("using SQLite database %s", cfg.DatabaseURL)
	return svc, func() { _ = sqlDB.Close() }, nil
}

// newGRPCServer assembles the gRPC server: TLS when configured, then the
// interceptor chain logging -> rate limiter -> auth.
func newGRPCServer(cfg config.Config, srv *Server, jwtMgr *auth.JWTManager, limiter *middleware.LimiterStore) (*grpc.Server, error) {
	var serverOpts []grpc.ServerOption
	if cfg.TLSEnabled() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	limited := map[string]bool{methodLogin: true}
	serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(
		logUnaryInterceptor(),
		middleware.RateLimitUnaryInterceptor(limiter, limited),
		authUnaryInterceptor(jwtMgr),
	))

	g := grpc.NewServer(serverOpts...)
	registerService(g, srv)
	return g, nil
}
