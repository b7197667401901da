// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dotandev/abcmerge/internal/abc"
	"github.com/dotandev/abcmerge/internal/errors"
	"github.com/dotandev/abcmerge/internal/logger"
	"github.com/dotandev/abcmerge/internal/namefilter"
	"github.com/dotandev/abcmerge/internal/telemetry"
	"github.com/dotandev/abcmerge/internal/transcode"
)

// ServiceName is the JSON-RPC service prefix: methods are called as
// "Transcode.Filter", "Transcode.Merge" and so on.
const ServiceName = "Transcode"

// Server exposes the transcoders over JSON-RPC 2.0. Paths in requests are
// resolved on the daemon's host.
type Server struct {
	transcoder *transcode.Transcoder
	authToken  string
}

// Config holds daemon configuration
type Config struct {
	Port      string
	AuthToken string
}

// FilterRequest represents the Transcode.Filter RPC request
type FilterRequest struct {
	Input   string   `json:"input"`
	Output  string   `json:"output"`
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// MergeRequest represents the Transcode.Merge RPC request
type MergeRequest struct {
	Inputs  []string `json:"inputs"`
	Output  string   `json:"output"`
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// InjectRequest represents the Transcode.Inject RPC request
type InjectRequest struct {
	Input   string   `json:"input"`
	Payload string   `json:"payload"`
	Anchor  string   `json:"anchor"`
	Output  string   `json:"output"`
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// ExtractRequest represents the Transcode.Extract RPC request
type ExtractRequest struct {
	Input  string `json:"input"`
	Symbol string `json:"symbol"`
	Output string `json:"output"`
}

// TranscodeResponse is returned by every operation that writes a file.
type TranscodeResponse struct {
	Op                  string   `json:"op"`
	Output              string   `json:"output"`
	OutputBytes         int      `json:"output_bytes"`
	CacheHit            bool     `json:"cache_hit"`
	Kept                []string `json:"kept,omitempty"`
	Rejected            []string `json:"rejected,omitempty"`
	Injected            []string `json:"injected,omitempty"`
	DroppedTags         int      `json:"dropped_tags"`
	InstructionsRemoved int      `json:"instructions_removed"`
}

// DumpRequest represents the Transcode.Dump RPC request
type DumpRequest struct {
	Input string `json:"input"`
}

// DumpFragment is the disassembly of one fragment.
type DumpFragment struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// DumpResponse represents the Transcode.Dump RPC response
type DumpResponse struct {
	Fragments []DumpFragment `json:"fragments"`
}

// NewServer creates a new JSON-RPC server
func NewServer(config Config, tr *transcode.Transcoder) *Server {
	if tr == nil {
		tr = transcode.New(nil)
	}
	return &Server{
		transcoder: tr,
		authToken:  config.AuthToken,
	}
}

// authenticate validates the authorization token
func (s *Server) authenticate(r *http.Request) bool {
	if s.authToken == "" {
		return true // No auth required
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return false
	}

	// Support "Bearer <token>" format
	if strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		return token == s.authToken
	}

	return auth == s.authToken
}

// call authenticates r and runs op inside an rpc span.
func (s *Server) call(r *http.Request, method string, attrs []attribute.KeyValue, op func(ctx context.Context) error) (err error) {
	if !s.authenticate(r) {
		return errors.WrapUnauthorized(method)
	}
	ctx, span := telemetry.StartSpan(r.Context(), "rpc."+method, attrs...)
	defer func() { telemetry.EndSpan(span, err) }()

	logger.Logger.Info("Processing RPC", "method", method)
	return op(ctx)
}

func filterOf(include, exclude []string) (*namefilter.Filter, error) {
	if len(include) == 0 && len(exclude) == 0 {
		return nil, nil
	}
	return namefilter.New(include, exclude)
}

func fill(resp *TranscodeResponse, rep *transcode.Report) {
	*resp = TranscodeResponse{
		Op:                  rep.Op,
		Output:              rep.Output,
		OutputBytes:         rep.OutputBytes,
		CacheHit:            rep.CacheHit,
		Kept:                rep.Result.Kept,
		Rejected:            rep.Result.Rejected,
		Injected:            rep.Result.Injected,
		DroppedTags:         rep.Result.DroppedTags,
		InstructionsRemoved: rep.Result.Stats.InstructionsRemoved,
	}
}

// Filter handles Transcode.Filter RPC calls
func (s *Server) Filter(r *http.Request, req *FilterRequest, resp *TranscodeResponse) error {
	return s.call(r, "filter", []attribute.KeyValue{attribute.String("input", req.Input)}, func(ctx context.Context) error {
		accept, err := filterOf(req.Include, req.Exclude)
		if err != nil {
			return err
		}
		rep, err := s.transcoder.Filter(ctx, req.Input, req.Output, accept)
		if err != nil {
			return err
		}
		fill(resp, rep)
		return nil
	})
}

// Merge handles Transcode.Merge RPC calls
func (s *Server) Merge(r *http.Request, req *MergeRequest, resp *TranscodeResponse) error {
	return s.call(r, "merge", []attribute.KeyValue{attribute.Int("inputs", len(req.Inputs))}, func(ctx context.Context) error {
		accept, err := filterOf(req.Include, req.Exclude)
		if err != nil {
			return err
		}
		rep, err := s.transcoder.Merge(ctx, req.Inputs, req.Output, accept)
		if err != nil {
			return err
		}
		fill(resp, rep)
		return nil
	})
}

// Inject handles Transcode.Inject RPC calls
func (s *Server) Inject(r *http.Request, req *InjectRequest, resp *TranscodeResponse) error {
	return s.call(r, "inject", []attribute.KeyValue{attribute.String("anchor", req.Anchor)}, func(ctx context.Context) error {
		accept, err := filterOf(req.Include, req.Exclude)
		if err != nil {
			return err
		}
		rep, err := s.transcoder.Inject(ctx, req.Input, req.Payload, req.Anchor, req.Output, accept)
		if err != nil {
			return err
		}
		fill(resp, rep)
		return nil
	})
}

// Extract handles Transcode.Extract RPC calls
func (s *Server) Extract(r *http.Request, req *ExtractRequest, resp *TranscodeResponse) error {
	return s.call(r, "extract", []attribute.KeyValue{attribute.String("symbol", req.Symbol)}, func(ctx context.Context) error {
		rep, err := s.transcoder.ExtractSymbol(ctx, req.Input, req.Symbol, req.Output)
		if err != nil {
			return err
		}
		fill(resp, rep)
		return nil
	})
}

// Dump handles Transcode.Dump RPC calls
func (s *Server) Dump(r *http.Request, req *DumpRequest, resp *DumpResponse) error {
	return s.call(r, "dump", []attribute.KeyValue{attribute.String("input", req.Input)}, func(ctx context.Context) error {
		listings, err := transcode.Dump(ctx, req.Input, abc.Style{})
		if err != nil {
			return err
		}
		resp.Fragments = make([]DumpFragment, len(listings))
		for i, l := range listings {
			resp.Fragments[i] = DumpFragment{Name: l.Name, Text: l.Text}
		}
		return nil
	})
}

// Handler returns the daemon's routes: /rpc and /health.
func (s *Server) Handler() (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")

	if err := server.RegisterService(s, ServiceName); err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", server)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return mux, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port string) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	logger.Logger.Info("Starting JSON-RPC server", "port", port)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Error("Server failed", "error", err)
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Logger.Info("Shutting down JSON-RPC server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
