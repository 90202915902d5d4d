package backend

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/ielts-practice/internal/exam"
)

const defaultFetchConcurrency = 4

// StructureSource lists sections and their questions.
type StructureSource interface {
	Sections(ctx context.Context, examID int64) ([]exam.Section, error)
	Questions(ctx context.Context, sectionID int64) ([]exam.Question, error)
}

// StructureCache stores assembled exam structures. Get returns nil on a miss.
type StructureCache interface {
	Get(ctx context.Context, examID int64) ([]exam.Section, error)
	Set(ctx context.Context, examID int64, sections []exam.Section) error
}

// LoaderOptions configures a StructureLoader.
type LoaderOptions struct {
	// Concurrency bounds the parallel per-section question fetches.
	Concurrency int
}

// StructureLoader assembles an exam's sections with their questions.
type StructureLoader struct {
	source      StructureSource
	cache       StructureCache
	concurrency int
	logger      zerolog.Logger
}

// NewStructureLoader creates a loader. cache may be nil.
func NewStructureLoader(source StructureSource, cache StructureCache, opts LoaderOptions, logger zerolog.Logger) *StructureLoader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultFetchConcurrency
	}
	return &StructureLoader{
		source:      source,
		cache:       cache,
		concurrency: opts.Concurrency,
		logger:      logger.With().Str("component", "structure_loader").Logger(),
	}
}

// LoadStructure returns the exam's sections, each with its questions, ordered
// by sort order. Any failed fetch fails the whole load.
func (l *StructureLoader) LoadStructure(ctx context.Context, examID int64) ([]exam.Section, error) {
	if l.cache != nil {
		cached, err := l.cache.Get(ctx, examID)
		if err != nil {
			l.logger.Warn().Err(err).Int64("exam_id", examID).Msg("structure cache get failed")
		} else if cached != nil {
			l.logger.Debug().Int64("exam_id", examID).Msg("structure cache hit")
			return cached, nil
		}
	}

	sections, err := l.source.Sections(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("fetch sections: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i := range sections {
		g.Go(func() error {
			questions, err := l.source.Questions(gctx, sections[i].ID)
			if err != nil {
				return fmt.Errorf("fetch questions for section %d: %w", sections[i].ID, err)
			}
			sections[i].Questions = questions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	order(sections)
	l.warnUnknownTypes(examID, sections)

	if l.cache != nil {
		if err := l.cache.Set(ctx, examID, sections); err != nil {
			l.logger.Warn().Err(err).Int64("exam_id", examID).Msg("structure cache set failed")
		}
	}
	return sections, nil
}

// warnUnknownTypes logs question tags missing from the type table. Such
// questions are still scored, as free-text questions.
func (l *StructureLoader) warnUnknownTypes(examID int64, sections []exam.Section) {
	for _, s := range sections {
		for _, q := range s.Questions {
			if !q.Type.Valid() {
				l.logger.Warn().
					Int64("exam_id", examID).
					Int64("question_id", q.ID).
					Str("type", string(q.Type)).
					Msg("unknown question type")
			}
		}
	}
}

// order sorts sections, questions and options by SortOrder, keeping backend
// order for ties.
func order(sections []exam.Section) {
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].SortOrder < sections[j].SortOrder })
	for si := range sections {
		qs := sections[si].Questions
		sort.SliceStable(qs, func(i, j int) bool { return qs[i].SortOrder < qs[j].SortOrder })
		for qi := range qs {
			opts := qs[qi].Options
			sort.SliceStable(opts, func(i, j int) bool { return opts[i].SortOrder < opts[j].SortOrder })
		}
	}
}

// UserBackend is the exam backend as seen by one authenticated user: a
// token-bound client plus the shared structure loader.
type UserBackend struct {
	*Client
	loader *StructureLoader
}

// ForUser binds the client to token and wires the structure cache.
func (c *Client) ForUser(token string, cache StructureCache, opts LoaderOptions, logger zerolog.Logger) *UserBackend {
	client := c.WithToken(token)
	return &UserBackend{
		Client: client,
		loader: NewStructureLoader(client, cache, opts, logger),
	}
}

// LoadStructure loads the exam structure through the cache.
func (u *UserBackend) LoadStructure(ctx context.Context, examID int64) ([]exam.Section, error) {
	return u.loader.LoadStructure(ctx, examID)
}
