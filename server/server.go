package server

import (
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
	"github.com/tmbasic-lang/tmbasic-sub000/store"
)

var log = commonlog.GetLogger("tmbasic.server")

// TmbasicServer serves the compiler service over Connect (HTTP/JSON and
// binary protobuf) and, on a separate listener, plain gRPC.
type TmbasicServer struct {
	worker   *Worker
	programs *ProgramStore
	service  *CompilerService
	mux      *http.ServeMux
	grpc     *grpc.Server
	http     *http.Server

	stopSweeper func()
}

// ServerOption configures a TmbasicServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	cache      *store.Cache
	budget     int
	programTTL time.Duration
}

// WithCache makes Compile and Run consult and fill a compile cache.
func WithCache(c *store.Cache) ServerOption {
	return func(cfg *serverConfig) { cfg.cache = c }
}

// WithRunBudget sets the default instruction budget of Run requests.
func WithRunBudget(n int) ServerOption {
	return func(cfg *serverConfig) { cfg.budget = n }
}

// WithProgramTTL sets how long an unused compiled program is kept.
func WithProgramTTL(ttl time.Duration) ServerOption {
	return func(cfg *serverConfig) { cfg.programTTL = ttl }
}

// New creates a TmbasicServer with its own worker.
func New(opts ...ServerOption) *TmbasicServer {
	cfg := &serverConfig{budget: DefaultRunBudget, programTTL: 30 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewWorker(compiler.NewCompiler())
	programs := NewProgramStore()
	svc := NewCompilerService(worker, programs, cfg.cache)
	if cfg.budget > 0 {
		svc.budget = cfg.budget
	}

	s := &TmbasicServer{
		worker:   worker,
		programs: programs,
		service:  svc,
		mux:      http.NewServeMux(),
		grpc:     grpc.NewServer(),
	}
	s.http = &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}

	s.mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, svc.Compile))
	s.mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, svc.Run))
	RegisterCompilerService(s.grpc, svc)

	if cfg.programTTL > 0 {
		s.stopSweeper = programs.StartSweeper(cfg.programTTL/6, cfg.programTTL)
	}
	return s
}

// Handler returns the Connect HTTP handler.
func (s *TmbasicServer) Handler() http.Handler { return s.mux }

// ListenAndServe serves Connect on addr, "host:port" or ":port".
func (s *TmbasicServer) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve serves Connect on lis until Stop.
func (s *TmbasicServer) Serve(lis net.Listener) error {
	log.Noticef("compiler service listening on %s", lis.Addr())
	log.Infof("Connect (HTTP/JSON): http://%s%s", lis.Addr(), CompileProcedure)
	err := s.http.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ServeGRPC serves plain gRPC on lis until Stop.
func (s *TmbasicServer) ServeGRPC(lis net.Listener) error {
	log.Noticef("gRPC listening on %s", lis.Addr())
	return s.grpc.Serve(lis)
}

// Stop shuts down the listeners and the worker.
func (s *TmbasicServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	if err := s.http.Close(); err != nil {
		log.Warningf("closing http server: %s", err)
	}
	s.grpc.Stop()
	s.worker.Stop()
}
