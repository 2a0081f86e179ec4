package health

import (
	"context"
	"errors"

	"github.com/MrWong99/silibot/internal/voiceline"
)

// SnapshotSource exposes the current corpus snapshot.
type SnapshotSource interface {
	Snapshot() *voiceline.Snapshot
}

// CorpusChecker fails until src has loaded a corpus snapshot that holds at
// least one entity.
func CorpusChecker(src SnapshotSource) Checker {
	return Checker{
		Name: "corpus",
		Check: func(_ context.Context) error {
			snap := src.Snapshot()
			if snap == nil {
				return errors.New("corpus not loaded")
			}
			if snap.Catalog().Len() == 0 {
				return errors.New("corpus is empty")
			}
			return nil
		},
	}
}

// GatewayChecker fails while connected reports false.
func GatewayChecker(connected func() bool) Checker {
	return Checker{
		Name: "discord",
		Check: func(_ context.Context) error {
			if !connected() {
				return errors.New("gateway not connected")
			}
			return nil
		},
	}
}
