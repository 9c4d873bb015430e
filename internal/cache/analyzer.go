package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/lehigh-university-libraries/alttext/internal/providers"
)

// Analyzer serves captions from the cache and falls through to the wrapped
// analyzer on a miss. Closing it closes the wrapped analyzer, not the
// database.
type Analyzer struct {
	next providers.Analyzer
	db   *CacheDB
}

var _ providers.Analyzer = (*Analyzer)(nil)

// Wrap decorates next with db
func Wrap(next providers.Analyzer, db *CacheDB) *Analyzer {
	return &Analyzer{next: next, db: db}
}

// Name reports the wrapped provider's name
func (a *Analyzer) Name() string {
	return a.next.Name()
}

// Analyze returns a cached caption when one exists for the image bytes
func (a *Analyzer) Analyze(ctx context.Context, image []byte) (*providers.Analysis, error) {
	digest := Digest(image)

	entry, ok, err := a.db.Get(a.next.Name(), digest)
	if err != nil {
		slog.Warn("Caption cache read failed", "provider", a.next.Name(), "err", err)
	} else if ok {
		slog.Debug("Caption cache hit", "provider", a.next.Name(), "digest", digest[:12])
		return &providers.Analysis{Caption: entry.Caption, Confidence: entry.Confidence}, nil
	}

	analysis, err := a.next.Analyze(ctx, image)
	if err != nil {
		return nil, err
	}
	if err := a.db.Put(a.next.Name(), digest, Entry{Caption: analysis.Caption, Confidence: analysis.Confidence}); err != nil {
		slog.Warn("Caption cache write failed", "provider", a.next.Name(), "err", err)
	}
	return analysis, nil
}

// Close closes the wrapped analyzer
func (a *Analyzer) Close() error {
	return a.next.Close()
}

// Digest is the hex SHA-256 of an image payload
func Digest(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
