package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/silibot/internal/voiceline"
)

// Loader reads both corpus files into a new [voiceline.Snapshot].
//
// When a file is corrupted, or missing while a [Rebuilder] is configured,
// Load logs the fault, runs the rebuilder once and retries once. A second
// failure is returned wrapping [voiceline.ErrResourcesNotReady]; Load never
// panics or exits the process.
type Loader struct {
	entityFile   string
	responseFile string
	rebuilder    Rebuilder
	now          func() time.Time

	version atomic.Uint64
}

// LoaderOption configures a [Loader].
type LoaderOption func(*Loader)

// WithRebuilder sets the rebuilder used to repair the corpus files.
func WithRebuilder(r Rebuilder) LoaderOption {
	return func(l *Loader) {
		l.rebuilder = r
	}
}

// NewLoader returns a Loader for the given entity and response files.
func NewLoader(entityFile, responseFile string, opts ...LoaderOption) *Loader {
	l := &Loader{
		entityFile:   entityFile,
		responseFile: responseFile,
		now:          time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Files returns the entity and response file paths.
func (l *Loader) Files() (entityFile, responseFile string) {
	return l.entityFile, l.responseFile
}

// Load reads both files and returns a new snapshot. Every successful load
// gets a version one higher than the previous one.
func (l *Loader) Load(ctx context.Context) (*voiceline.Snapshot, error) {
	snap, err := l.read(ctx)
	if err == nil {
		return snap, nil
	}

	var corrupt *voiceline.CorpusCorruptionError
	isCorrupt := errors.As(err, &corrupt)
	if isCorrupt {
		slog.Error("corpus: file is corrupted", "path", corrupt.Path, "err", corrupt.Err)
	}
	if l.rebuilder == nil || (!isCorrupt && !errors.Is(err, fs.ErrNotExist)) {
		return nil, notReady(err)
	}

	slog.Warn("corpus: rebuilding resources", "reason", err)
	if rerr := l.rebuilder.Rebuild(ctx); rerr != nil {
		return nil, notReady(errors.Join(err, rerr))
	}

	snap, err = l.read(ctx)
	if err != nil {
		slog.Error("corpus: load failed after rebuild", "err", err)
		return nil, notReady(err)
	}
	return snap, nil
}

func notReady(err error) error {
	return fmt.Errorf("corpus: load: %w", errors.Join(voiceline.ErrResourcesNotReady, err))
}

// read decodes both files concurrently.
func (l *Loader) read(ctx context.Context) (*voiceline.Snapshot, error) {
	var (
		entities  []voiceline.EntityRecord
		responses map[string][]voiceline.ResponseRecord
		entErr    error
		respErr   error
	)

	var eg errgroup.Group
	eg.Go(func() error {
		entErr = readFile(ctx, l.entityFile, func(f *os.File) error {
			var err error
			entities, err = DecodeEntities(f)
			return err
		})
		return entErr
	})
	eg.Go(func() error {
		respErr = readFile(ctx, l.responseFile, func(f *os.File) error {
			var err error
			responses, err = DecodeResponses(f)
			return err
		})
		return respErr
	})
	// Both files are always read so a fault in one does not hide the other.
	if eg.Wait() != nil {
		return nil, errors.Join(entErr, respErr)
	}

	cat, err := voiceline.NewCatalog(entities)
	if err != nil {
		return nil, &voiceline.CorpusCorruptionError{Path: l.entityFile, Err: err}
	}
	corp := voiceline.NewCorpus(responses)

	snap := voiceline.NewSnapshot(cat, corp, l.version.Add(1), l.now())
	slog.Info("corpus: loaded",
		"version", snap.Version(),
		"entities", cat.Len(),
		"titles", corp.Titles(),
		"responses", corp.Len(),
	)
	return snap, nil
}

// readFile opens path and passes it to decode. A missing file is reported
// wrapping [fs.ErrNotExist]; a decode failure is a
// [*voiceline.CorpusCorruptionError].
func readFile(ctx context.Context, path string, decode func(*os.File) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("corpus: file missing, resources have likely not finished downloading yet", "path", path)
		}
		return fmt.Errorf("corpus: open %q: %w", path, err)
	}
	defer f.Close()

	if err := decode(f); err != nil {
		return &voiceline.CorpusCorruptionError{Path: path, Err: err}
	}
	return nil
}
