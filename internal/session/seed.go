package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/showcase/internal/metrics"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// seedConcurrency bounds the collections seeded at once.
const seedConcurrency = 4

// SeedOptions controls Seed.
type SeedOptions struct {
	// Force replaces remote content that already exists.
	Force bool

	// Collections limits seeding to the named collections. Empty means
	// every collection in the bundle. The profile is seeded only when
	// Collections is empty.
	Collections []string
}

// SeedReport describes what Seed wrote.
type SeedReport struct {
	Profile  bool           `json:"profile"`
	Inserted map[string]int `json:"inserted"`
	Skipped  []string       `json:"skipped,omitempty"`
}

// Seed pushes the bundled defaults into the store. The profile is written
// with a merge and each collection's items are inserted with order equal to
// their bundle position. Content that already exists remotely is left alone
// unless opts.Force is set, in which case a collection's remote items are
// deleted before the defaults are inserted.
func (e *Editor) Seed(ctx context.Context, opts SeedOptions) (SeedReport, error) {
	bundle := e.content.Defaults()
	report := SeedReport{Inserted: make(map[string]int)}

	names := opts.Collections
	if len(names) == 0 {
		names = bundle.Collections()
		wrote, err := e.seedProfile(ctx, opts.Force)
		if err != nil {
			return report, err
		}
		report.Profile = wrote
	}
	for _, name := range names {
		if !bundle.Has(name) {
			return report, fmt.Errorf("%w: no defaults for %q", types.ErrInvalidCollection, name)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for _, name := range names {
		g.Go(func() error {
			n, err := e.seedCollection(gctx, name, opts.Force)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if n < 0 {
				report.Skipped = append(report.Skipped, name)
			} else {
				report.Inserted[name] = n
			}
			return nil
		})
	}
	err := g.Wait()
	sort.Strings(report.Skipped)
	e.settle()
	return report, err
}

func (e *Editor) seedProfile(ctx context.Context, force bool) (bool, error) {
	_, exists, err := e.docs.GetDocument(ctx, types.ProfilePath)
	if err != nil {
		return false, err
	}
	if exists && !force {
		e.log.Info().Msg("profile exists, skipping seed")
		return false, nil
	}
	doc := e.content.Defaults().ProfileDocument()
	err = e.docs.SetDocument(ctx, types.ProfilePath, doc, types.SetOptions{Merge: true})
	metrics.RecordWrite("seed", err)
	if err != nil {
		e.log.Error().Err(err).Msg("seeding profile failed")
		return false, fmt.Errorf("%w: %w", types.ErrWriteFailed, err)
	}
	e.log.Info().Int("fields", len(doc)).Msg("profile seeded")
	return true, nil
}

// seedCollection returns the number of items inserted, or -1 when the
// collection was skipped.
func (e *Editor) seedCollection(ctx context.Context, name string, force bool) (int, error) {
	log := e.log.With().Str("collection", name).Logger()

	existing, err := e.docs.ListItems(ctx, name)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		if !force {
			log.Info().Int("items", len(existing)).Msg("collection has remote items, skipping seed")
			return -1, nil
		}
		for _, it := range existing {
			err := e.docs.DeleteItem(ctx, name, it.ID)
			metrics.RecordWrite("delete", err)
			if err != nil {
				return 0, fmt.Errorf("%w: %w", types.ErrWriteFailed, err)
			}
		}
	}

	items := e.content.Defaults().Items(name)
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		it.Order = types.IntPtr(i)
		_, err := e.docs.AddItem(ctx, name, it.Document())
		metrics.RecordWrite("seed", err)
		if err != nil {
			log.Error().Err(err).Int("inserted", i).Msg("seeding collection failed")
			return i, fmt.Errorf("%w: %w", types.ErrWriteFailed, err)
		}
	}
	log.Info().Int("items", len(items)).Msg("collection seeded")
	return len(items), nil
}
