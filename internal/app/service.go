package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/silibot/internal/config"
	"github.com/MrWong99/silibot/internal/observe"
	"github.com/MrWong99/silibot/internal/voiceline"
	"github.com/MrWong99/silibot/internal/voiceline/namematch"
)

// Source labels identify the surface a request came from in metrics and
// logs.
const (
	SourceDiscord = "discord"
	SourceCLI     = "cli"
	SourceMCP     = "mcp"
)

// Snapshots provides the current corpus snapshot, loading it if needed.
type Snapshots interface {
	Get(ctx context.Context) (*voiceline.Snapshot, error)
}

// SearchSettings tunes [Service.Search].
type SearchSettings struct {
	Tolerance  int
	MaxResults int
}

// ErrUnknownResult is returned by [Service.ResolveID] when no search result
// has the given ID in the current snapshot.
var ErrUnknownResult = errors.New("app: unknown search result")

// Service answers voice line queries against the current corpus snapshot.
// It is the single entry point shared by the chat transport, the CLI and the
// MCP server. Settings can be swapped while requests are in flight; each
// request uses the values it read at its start.
type Service struct {
	snaps   Snapshots
	metrics *observe.Metrics

	resolver atomic.Pointer[voiceline.Resolver]
	search   atomic.Pointer[SearchSettings]
}

// NewService returns a Service reading snapshots from snaps. m may be nil.
func NewService(snaps Snapshots, r *voiceline.Resolver, search SearchSettings, m *observe.Metrics) *Service {
	s := &Service{snaps: snaps, metrics: m}
	s.SetResolver(r)
	s.SetSearch(search)
	return s
}

// NewResolver builds a resolver from the resolver section of cfg.
func NewResolver(cfg config.ResolverConfig) *voiceline.Resolver {
	m := namematch.New(
		namematch.WithMaxEdits(cfg.NameEdits),
		namematch.WithPhoneticThreshold(cfg.PhoneticThreshold),
		namematch.WithFuzzyThreshold(cfg.FuzzyThreshold),
	)
	return voiceline.NewResolver(m, voiceline.WithLineTolerance(cfg.LineTolerance))
}

// SearchFromConfig converts the search section of cfg.
func SearchFromConfig(cfg config.SearchConfig) SearchSettings {
	return SearchSettings{Tolerance: cfg.Tolerance, MaxResults: cfg.MaxResults}
}

// SetResolver replaces the resolver used by later requests.
func (s *Service) SetResolver(r *voiceline.Resolver) {
	s.resolver.Store(r)
}

// SetSearch replaces the search settings used by later requests.
func (s *Service) SetSearch(ss SearchSettings) {
	s.search.Store(&ss)
}

// Resolve parses query ("Entity (type): line (level)") and resolves it to a
// single audio URL. Errors are the typed errors of package voiceline; pass
// them to [voiceline.UserMessage] for the chat reply.
func (s *Service) Resolve(ctx context.Context, source, query string) (res voiceline.Resolution, err error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "voiceline.Resolve")
	span.SetAttributes(observe.Attr("source", source))
	defer func() {
		outcome := voiceline.Outcome(err)
		observe.EndSpan(span, outcome, err)
		if s.metrics != nil {
			s.metrics.RecordResolve(ctx, source, outcome, time.Since(start))
		}
	}()

	q, err := voiceline.ParseQuery(strings.Fields(query))
	if err != nil {
		observe.Logger(ctx).Warn("voiceline: could not parse query", "source", source, "query", query, "err", err)
		return voiceline.Resolution{}, err
	}

	snap, err := s.snaps.Get(ctx)
	if err != nil {
		return voiceline.Resolution{}, err
	}

	res, err = s.resolver.Load().Lookup(snap, q)
	if err != nil {
		observe.Logger(ctx).Info("voiceline: no match", "source", source, "query", query, "outcome", voiceline.Outcome(err))
		return voiceline.Resolution{}, err
	}
	observe.Logger(ctx).Debug("voiceline: resolved",
		"source", source,
		"entity", res.Entity.Name,
		"level", res.Level+1,
		"fuzzy", res.Fuzzy,
		"url", res.URL,
	)
	return res, nil
}

// ResolveID returns the search result with the given stable ID.
func (s *Service) ResolveID(ctx context.Context, id string) (voiceline.IndexEntry, error) {
	snap, err := s.snaps.Get(ctx)
	if err != nil {
		return voiceline.IndexEntry{}, err
	}
	e, ok := snap.Index().LookupID(id)
	if !ok {
		return voiceline.IndexEntry{}, fmt.Errorf("%w: %q", ErrUnknownResult, id)
	}
	return e, nil
}

// Search returns search results for query in corpus order. limit caps the
// result count below the configured maximum; zero or less means no extra
// cap.
func (s *Service) Search(ctx context.Context, source, query string, limit int) ([]voiceline.IndexEntry, error) {
	start := time.Now()
	snap, err := s.snaps.Get(ctx)
	if err != nil {
		return nil, err
	}

	ss := s.search.Load()
	n := ss.MaxResults
	if n <= 0 {
		n = voiceline.DefaultMaxResults
	}
	if limit > 0 && limit < n {
		n = limit
	}

	out := snap.Index().Search(query, ss.Tolerance, n)
	if s.metrics != nil {
		s.metrics.RecordSearch(ctx, source, time.Since(start))
	}
	slog.Debug("voiceline: search", "source", source, "query", query, "results", len(out))
	return out, nil
}
