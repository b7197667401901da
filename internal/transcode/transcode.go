// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package transcode runs the SWF and ABC transcoders over files: it loads
// inputs, consults the output cache, writes results atomically and records
// each run in the history journal.
package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dotandev/abcmerge/internal/abc"
	"github.com/dotandev/abcmerge/internal/cache"
	"github.com/dotandev/abcmerge/internal/config"
	"github.com/dotandev/abcmerge/internal/container"
	"github.com/dotandev/abcmerge/internal/db"
	"github.com/dotandev/abcmerge/internal/errors"
	"github.com/dotandev/abcmerge/internal/logger"
	"github.com/dotandev/abcmerge/internal/namefilter"
	"github.com/dotandev/abcmerge/internal/swf"
	"github.com/dotandev/abcmerge/internal/telemetry"
)

// Operation names, used for spans, cache keys and history rows.
const (
	OpFilter    = "filter"
	OpMerge     = "merge"
	OpInject    = "inject"
	OpExtract   = "extract"
	OpClassPool = "classpool"
)

// Transcoder is the file-level entry point to the transcoders.
type Transcoder struct {
	opts    swf.Options
	cache   *cache.Manager
	history *db.Store
}

// Option configures a Transcoder.
type Option func(*Transcoder)

// WithCache stores outputs in m and serves repeated requests from it.
func WithCache(m *cache.Manager) Option {
	return func(t *Transcoder) {
		t.cache = m
	}
}

// WithHistory records every run in s.
func WithHistory(s *db.Store) Option {
	return func(t *Transcoder) {
		t.history = s
	}
}

// WithOptions overrides the codec options taken from the configuration.
func WithOptions(opts swf.Options) Option {
	return func(t *Transcoder) {
		t.opts = opts
	}
}

// New creates a Transcoder. A nil cfg uses config.DefaultConfig; the cache
// and history are only used when passed as options.
func New(cfg *config.Config, opts ...Option) *Transcoder {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	t := &Transcoder{opts: cfg.CodecOptions()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Report describes a finished run.
type Report struct {
	Op          string
	Output      string
	OutputBytes int
	CacheHit    bool
	// Result is zero for cache hits and for operations that do not merge.
	Result swf.Result
}

// request is one run: its inputs, the extra parameters that select the
// output, and the function producing it.
type request struct {
	op      string
	inputs  []string
	output  string
	params  []string
	produce func(ctx context.Context, in []*container.Input) ([]byte, swf.Result, error)
}

// Filter rewrites in so that only fragments accept approves remain, merged
// into a single DoABC2 tag.
func (t *Transcoder) Filter(ctx context.Context, in, out string, accept *namefilter.Filter) (*Report, error) {
	return t.merge(ctx, OpFilter, []string{in}, out, accept)
}

// Merge combines the fragments of every input into the first input's
// movie. With an ".abc" output only the merged block is written.
func (t *Transcoder) Merge(ctx context.Context, ins []string, out string, accept *namefilter.Filter) (*Report, error) {
	if len(ins) == 0 {
		return nil, errors.WrapValidationError("merge needs at least one input")
	}
	return t.merge(ctx, OpMerge, ins, out, accept)
}

func (t *Transcoder) merge(ctx context.Context, op string, ins []string, out string, accept *namefilter.Filter) (*Report, error) {
	return t.run(ctx, request{
		op:     op,
		inputs: ins,
		output: out,
		params: []string{accept.String()},
		produce: func(ctx context.Context, in []*container.Input) ([]byte, swf.Result, error) {
			movies, err := asMovies(in)
			if err != nil {
				return nil, swf.Result{}, err
			}
			return t.transcode(swf.NewAbcFilter(accept.Accept, t.opts), out, movies)
		},
	})
}

// Inject splices the code of payload, an ABC block or a movie, in front of
// the fragment or class named anchor.
func (t *Transcoder) Inject(ctx context.Context, in, payload, anchor, out string, accept *namefilter.Filter) (*Report, error) {
	if anchor == "" {
		return nil, errors.WrapValidationError("inject needs an anchor")
	}
	return t.run(ctx, request{
		op:     OpInject,
		inputs: []string{in, payload},
		output: out,
		params: []string{accept.String(), anchor},
		produce: func(ctx context.Context, in []*container.Input) ([]byte, swf.Result, error) {
			block, err := t.payloadABC(in[1])
			if err != nil {
				return nil, swf.Result{}, err
			}
			if err := ctx.Err(); err != nil {
				return nil, swf.Result{}, err
			}
			m, err := in[0].AsMovie()
			if err != nil {
				return nil, swf.Result{}, err
			}
			f := swf.NewAbcFilter(accept.Accept, t.opts).Inject(swf.Injection{
				Anchor: anchor,
				Name:   in[1].FragmentName(),
				ABC:    block,
			})
			return t.transcode(f, out, []*swf.Movie{m})
		},
	})
}

// payloadABC returns the code to inject: a bare block as is, or the merged
// fragments of a movie.
func (t *Transcoder) payloadABC(in *container.Input) ([]byte, error) {
	if in.Kind == container.KindABC {
		return in.ABC, nil
	}
	block, _, err := swf.NewAbcFilter(nil, t.opts).TranscodeABC(in.Movie)
	if err != nil {
		return nil, fmt.Errorf("payload %s: %w", in.Path, err)
	}
	return block, nil
}

// ExtractSymbol writes a movie holding only the exported symbol.
func (t *Transcoder) ExtractSymbol(ctx context.Context, in, symbol, out string) (*Report, error) {
	if symbol == "" {
		return nil, errors.WrapValidationError("extract needs a symbol name")
	}
	return t.run(ctx, request{
		op:     OpExtract,
		inputs: []string{in},
		output: out,
		params: []string{symbol},
		produce: func(ctx context.Context, in []*container.Input) ([]byte, swf.Result, error) {
			m, err := in[0].AsMovie()
			if err != nil {
				return nil, swf.Result{}, err
			}
			data, err := swf.NewMovieSymbolTranscoder(t.opts).Extract(m, symbol)
			return data, swf.Result{}, err
		},
	})
}

// GenerateClassPool writes a movie declaring count placeholder classes.
func (t *Transcoder) GenerateClassPool(ctx context.Context, kind swf.PoolKind, count int, out string) (*Report, error) {
	return t.run(ctx, request{
		op:     OpClassPool,
		output: out,
		params: []string{string(kind), strconv.Itoa(count)},
		produce: func(ctx context.Context, _ []*container.Input) ([]byte, swf.Result, error) {
			data, err := swf.NewClassPoolGenerator(t.opts).Generate(kind, count)
			return data, swf.Result{}, err
		},
	})
}

// WantsABC reports whether path names a bare ABC output.
func WantsABC(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".abc")
}

func (t *Transcoder) transcode(f *swf.AbcFilter, out string, movies []*swf.Movie) ([]byte, swf.Result, error) {
	if WantsABC(out) {
		return f.TranscodeABC(movies...)
	}
	return f.Transcode(movies...)
}

func asMovies(in []*container.Input) ([]*swf.Movie, error) {
	movies := make([]*swf.Movie, len(in))
	for i, input := range in {
		m, err := input.AsMovie()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", input.Path, err)
		}
		movies[i] = m
	}
	return movies, nil
}

func (t *Transcoder) cacheKey(req request, raw [][]byte) string {
	parts := [][]byte{
		[]byte(req.op),
		[]byte(fmt.Sprintf("%+v", t.opts)),
		[]byte(filepath.Ext(req.output)),
	}
	for _, p := range req.params {
		parts = append(parts, []byte(p))
	}
	// Bare ABC inputs are named after their file, so the name is part of
	// the result.
	for i, path := range req.inputs {
		parts = append(parts, []byte(container.FragmentName(path)), raw[i])
	}
	return cache.Key(parts...)
}

func (t *Transcoder) run(ctx context.Context, req request) (rep *Report, err error) {
	if req.output == "" {
		return nil, errors.WrapValidationError("no output path")
	}
	ctx, span := telemetry.StartSpan(ctx, "transcode."+req.op,
		attribute.Int("inputs", len(req.inputs)),
		attribute.String("output", req.output),
	)
	start := time.Now()
	var inputBytes int64
	defer func() {
		telemetry.EndSpan(span, err)
		t.record(req, rep, inputBytes, time.Since(start), err)
	}()

	logger.Logger.Info("Transcode started", "op", req.op, "inputs", req.inputs, "output", req.output)

	raw := make([][]byte, len(req.inputs))
	inputs := make([]*container.Input, len(req.inputs))
	for i, path := range req.inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		inputBytes += int64(len(data))
		raw[i] = data
	}

	var key string
	if t.cache != nil {
		key = t.cacheKey(req, raw)
		data, ok, err := t.cache.Get(key)
		if err != nil {
			logger.Logger.Warn("Cache lookup failed", "key", key, "error", err)
		}
		if ok {
			logger.Logger.Debug("Cache hit", "op", req.op, "key", key)
			if err := writeFile(req.output, data); err != nil {
				return nil, err
			}
			span.SetAttributes(attribute.Bool("cache_hit", true), attribute.Int("output_bytes", len(data)))
			return &Report{Op: req.op, Output: req.output, OutputBytes: len(data), CacheHit: true}, nil
		}
	}

	for i, path := range req.inputs {
		in, err := container.Read(path, raw[i])
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, res, err := req.produce(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := writeFile(req.output, data); err != nil {
		return nil, err
	}

	if t.cache != nil {
		if err := t.cache.Put(key, data); err != nil {
			logger.Logger.Warn("Failed to store cache entry", "key", key, "error", err)
		}
	}

	span.SetAttributes(
		attribute.Int("fragments_kept", len(res.Kept)),
		attribute.Int("fragments_rejected", len(res.Rejected)),
		attribute.Int("output_bytes", len(data)),
	)
	logger.Logger.Info("Transcode completed",
		"op", req.op,
		"output", req.output,
		"fragments_kept", len(res.Kept),
		"fragments_rejected", len(res.Rejected),
		"tags_dropped", res.DroppedTags,
		"instructions_removed", res.Stats.InstructionsRemoved,
		"output_bytes", len(data))

	return &Report{Op: req.op, Output: req.output, OutputBytes: len(data), Result: res}, nil
}

func (t *Transcoder) record(req request, rep *Report, inputBytes int64, elapsed time.Duration, err error) {
	if t.history == nil {
		return
	}
	run := &db.Run{
		Op:         req.op,
		Inputs:     req.inputs,
		Output:     req.output,
		Status:     db.StatusOK,
		InputBytes: inputBytes,
		Duration:   elapsed,
	}
	if err != nil {
		run.Status = db.StatusFailed
		run.ErrorMsg = err.Error()
	}
	if rep != nil {
		run.OutputBytes = int64(rep.OutputBytes)
		run.CacheHit = rep.CacheHit
	}
	if err := t.history.SaveRun(run); err != nil {
		logger.Logger.Warn("Failed to record run", "op", req.op, "error", err)
	}
}

// writeFile replaces path with data through a synced temporary file in the
// same directory. On error path is left untouched.
func writeFile(path string, data []byte) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err = os.Chmod(f.Name(), 0644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// Listing is the disassembly of one fragment.
type Listing struct {
	Name string
	Text string
}

// Dump disassembles every fragment of the input at path.
func Dump(ctx context.Context, path string, style abc.Style) ([]Listing, error) {
	_, span := telemetry.StartSpan(ctx, "transcode.dump", attribute.String("input", path))
	in, err := container.Load(path)
	if err != nil {
		telemetry.EndSpan(span, err)
		return nil, err
	}
	out, err := dump(in, style)
	telemetry.EndSpan(span, err)
	return out, err
}

func dump(in *container.Input, style abc.Style) ([]Listing, error) {
	var frags []swf.Fragment
	if in.Kind == container.KindABC {
		frags = []swf.Fragment{{Name: in.FragmentName(), ABC: in.ABC}}
	} else {
		var err error
		if frags, err = in.Movie.Fragments(); err != nil {
			return nil, err
		}
	}
	out := make([]Listing, 0, len(frags))
	for _, f := range frags {
		d, err := abc.NewDecoder(f.Name, f.ABC)
		if err != nil {
			return nil, fmt.Errorf("fragment %q: %w", f.Name, err)
		}
		text, err := abc.DisassembleStyled(d, style)
		if err != nil {
			return nil, fmt.Errorf("fragment %q: %w", f.Name, err)
		}
		out = append(out, Listing{Name: f.Name, Text: text})
	}
	return out, nil
}
