package app_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/silibot/internal/app"
	"github.com/MrWong99/silibot/internal/config"
	"github.com/MrWong99/silibot/internal/corpus/corpustest"
	"github.com/MrWong99/silibot/internal/observe"
	"github.com/MrWong99/silibot/internal/voiceline"
)

const audioBase = "https://cdn.example"

func newTestService(t *testing.T) (*app.Service, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	_, svc := app.NewCorpusService(testConfig(t), m)
	return svc, reader
}

// resolveCount returns the resolve counter for the given status label.
func resolveCount(t *testing.T, reader *sdkmetric.ManualReader, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "silibot.resolve.requests" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("silibot.resolve.requests is %T", met.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("status")); ok && v.AsString() == status {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func TestService_Resolve(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	tests := []struct {
		name      string
		query     string
		wantURL   string
		wantFuzzy bool
	}{
		{name: "exact", query: "Zeus: Zeus.", wantURL: audioBase + "/zeus.mp3"},
		{name: "level", query: "Abaddon: Abaddon. (3)", wantURL: audioBase + "/abaddon_3.mp3"},
		{name: "misspelled entity", query: "Abadon: the mist is coming", wantURL: audioBase + "/abaddon_mist.mp3", wantFuzzy: true},
		{name: "typed announcer", query: "Bastion (announcer): first blood", wantURL: audioBase + "/bastion_first_blood.mp3"},
		{name: "display key", query: "Abaddon [hero]: Abaddon. [3]", wantURL: audioBase + "/abaddon_3.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := svc.Resolve(context.Background(), app.SourceCLI, tt.query)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.query, err)
			}
			if res.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", res.URL, tt.wantURL)
			}
			if res.Fuzzy != tt.wantFuzzy {
				t.Errorf("Fuzzy = %v, want %v", res.Fuzzy, tt.wantFuzzy)
			}
		})
	}
}

func TestService_ResolveErrors(t *testing.T) {
	t.Parallel()
	svc, reader := newTestService(t)

	tests := []struct {
		query   string
		outcome string
	}{
		{query: "Abaddon", outcome: voiceline.OutcomeParseError},
		{query: "Abaddon (wizard): hi", outcome: voiceline.OutcomeParseError},
		{query: "Nobody At All: hello", outcome: voiceline.OutcomeEntityNotFound},
		{query: "Zeus: something else entirely", outcome: voiceline.OutcomeLineNotFound},
		{query: "Abaddon: Abaddon. (2)", outcome: voiceline.OutcomeMissingURL},
	}

	for _, tt := range tests {
		_, err := svc.Resolve(context.Background(), app.SourceDiscord, tt.query)
		if err == nil {
			t.Errorf("Resolve(%q) succeeded, want %s", tt.query, tt.outcome)
			continue
		}
		if got := voiceline.Outcome(err); got != tt.outcome {
			t.Errorf("Resolve(%q) outcome = %s (%v), want %s", tt.query, got, err, tt.outcome)
		}
		if voiceline.UserMessage(err) == "" {
			t.Errorf("Resolve(%q): empty user message", tt.query)
		}
	}

	if got := resolveCount(t, reader, voiceline.OutcomeParseError); got != 2 {
		t.Errorf("parse_error count = %d, want 2", got)
	}
	if got := resolveCount(t, reader, voiceline.OutcomeMissingURL); got != 1 {
		t.Errorf("missing_url count = %d, want 1", got)
	}
}

func TestService_ResolveNotReady(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Corpus.EntityFile = cfg.Corpus.EntityFile + ".missing"
	_, svc := app.NewCorpusService(cfg, nil)

	_, err := svc.Resolve(context.Background(), app.SourceCLI, "Zeus: Zeus.")
	if !errors.Is(err, voiceline.ErrResourcesNotReady) {
		t.Fatalf("error = %v, want ErrResourcesNotReady", err)
	}
	if _, err := svc.Search(context.Background(), app.SourceCLI, "", 0); !errors.Is(err, voiceline.ErrResourcesNotReady) {
		t.Errorf("Search error = %v, want ErrResourcesNotReady", err)
	}
}

func TestService_ResolveID(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	e, err := svc.ResolveID(context.Background(), voiceline.KeyID(corpustest.Keys[2]))
	if err != nil {
		t.Fatalf("ResolveID: %v", err)
	}
	if e.Key != corpustest.Keys[2] || e.URL != audioBase+"/abaddon_3.mp3" {
		t.Errorf("ResolveID = %+v", e)
	}

	if _, err := svc.ResolveID(context.Background(), "deadbeef"); !errors.Is(err, app.ErrUnknownResult) {
		t.Errorf("unknown id error = %v, want ErrUnknownResult", err)
	}
}

func TestService_Search(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	all, err := svc.Search(ctx, app.SourceCLI, "", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(all) != len(corpustest.Keys) {
		t.Fatalf("blank search returned %d entries, want %d", len(all), len(corpustest.Keys))
	}
	for i, e := range all {
		if e.Key != corpustest.Keys[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Key, corpustest.Keys[i])
		}
	}

	got, err := svc.Search(ctx, app.SourceCLI, "abaddon", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].Key != corpustest.Keys[1] || got[1].Key != corpustest.Keys[2] {
		t.Errorf("limited search = %+v", got)
	}

	svc.SetSearch(app.SearchSettings{MaxResults: 1})
	got, err = svc.Search(ctx, app.SourceCLI, "abaddon", 25)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("configured maximum not applied: got %d entries", len(got))
	}
}

func TestService_SetResolver(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	if _, err := svc.Resolve(context.Background(), app.SourceCLI, "Abadon: the mist"); err != nil {
		t.Fatalf("fuzzy resolve: %v", err)
	}

	svc.SetResolver(voiceline.NewResolver(nil))
	_, err := svc.Resolve(context.Background(), app.SourceCLI, "Abadon: the mist")
	var notFound *voiceline.EntityNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("error = %v, want EntityNotFoundError once fuzzy matching is off", err)
	}
}

func TestNewResolver_NameEdits(t *testing.T) {
	t.Parallel()
	_, svc := app.NewCorpusService(testConfig(t), nil)

	strict := config.ResolverConfig{PhoneticThreshold: 1, FuzzyThreshold: 1, NameEdits: -1}
	svc.SetResolver(app.NewResolver(strict))
	if _, err := svc.Resolve(context.Background(), app.SourceCLI, "Zeis: Zeus."); err == nil {
		t.Fatal("Resolve(Zeis) succeeded without an edit budget")
	}

	strict.NameEdits = 1
	svc.SetResolver(app.NewResolver(strict))
	res, err := svc.Resolve(context.Background(), app.SourceCLI, "Zeis: Zeus.")
	if err != nil {
		t.Fatalf("Resolve(Zeis) with one edit allowed: %v", err)
	}
	if res.Entity.Name != "Zeus" {
		t.Errorf("entity = %q, want Zeus", res.Entity.Name)
	}
}
