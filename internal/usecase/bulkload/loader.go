package bulkload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/cropmind/agridex/internal/domain"
	domdoc "github.com/cropmind/agridex/internal/domain/document"
)

// Store persists master-data records.
type Store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, key string) error
}

// Documents creates seed knowledge documents as version-1 drafts.
type Documents interface {
	Create(ctx context.Context, documentID, title string, dom domdoc.Domain,
		content string, meta domdoc.Metadata) (domdoc.Document, error)
}

// Options controls a bulk-load run.
type Options struct {
	// DryRun stops after phase 2 and reports would-be results.
	DryRun bool
	// PreClear deletes stored master data before loading.
	PreClear bool
}

// parsed is one schema-valid input record awaiting further phases.
type parsed struct {
	file  string
	index int
	rec   record
}

// Loader seeds the stores from a directory of one-entity-per-file JSON
// inputs. Phases run strictly in order: schema validation, referential
// validation in dependency-level order, load, count verification. Errors
// from the validation phases are collected in full, never fail-fast.
type Loader struct {
	store Store
	docs  Documents
	pool  *ants.Pool
	log   *zap.Logger
}

// New creates a bulk loader. The pool bounds per-record validation
// concurrency within one dependency level.
func New(store Store, docs Documents, pool *ants.Pool, log *zap.Logger) *Loader {
	return &Loader{store: store, docs: docs, pool: pool, log: log}
}

// Load runs all phases against a source directory and returns the report.
// The returned error covers run mechanics only (unreadable directory and
// the like); record problems land in the report.
func (l *Loader) Load(ctx context.Context, dir string, opts Options) (*Report, error) {
	report := &Report{
		DryRun: opts.DryRun,
		Loaded: make(map[string]int),
		Counts: make(map[string]CountDelta),
	}

	byEntity, err := l.parseDir(dir, report)
	if err != nil {
		return nil, err
	}

	valid := l.validateReferences(ctx, byEntity, report)

	if opts.DryRun {
		for name, records := range valid {
			report.Counts[name] = CountDelta{Expected: len(records)}
		}
		return report, nil
	}

	if opts.PreClear {
		if err := l.preClear(ctx); err != nil {
			return nil, err
		}
	}
	if err := l.load(ctx, valid, report); err != nil {
		return nil, err
	}
	if err := l.verify(ctx, valid, report); err != nil {
		return nil, err
	}
	return report, nil
}

// parseDir is phase 1: strict per-record schema validation, every error
// tagged with its source file and record index.
func (l *Loader) parseDir(dir string, report *Report) (map[string][]parsed, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source directory: %w", err)
	}

	byEntity := make(map[string][]parsed)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file := entry.Name()

		name := strings.TrimSuffix(file, ".json")
		spec, known := specByName(name)
		if !strings.HasSuffix(file, ".json") || !known {
			report.Errors = append(report.Errors, RecordError{
				File: file, Index: -1, Kind: KindValidation,
				Message: "unknown entity type",
			})
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}

		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			report.Errors = append(report.Errors, RecordError{
				File: file, Index: -1, Kind: KindValidation,
				Message: fmt.Sprintf("file is not a JSON array: %v", err),
			})
			continue
		}

		for i, raw := range raws {
			rec, err := spec.decode(raw)
			if err != nil {
				report.Errors = append(report.Errors, RecordError{
					File: file, Index: i, Kind: KindValidation, Message: err.Error(),
				})
				continue
			}
			if err := rec.Validate(); err != nil {
				report.Errors = append(report.Errors, RecordError{
					File: file, Index: i, Kind: KindValidation, Message: err.Error(),
				})
				continue
			}
			byEntity[name] = append(byEntity[name], parsed{file: file, index: i, rec: rec})
		}
	}
	return byEntity, nil
}

// validateReferences is phase 2: dependency levels ascend one at a time and
// each record's foreign keys are resolved against the registry, which only
// ever holds IDs from strictly lower levels plus completed same-level
// entities added after the whole level validated. Records within a level
// have no cross-dependencies, so they check out in parallel.
func (l *Loader) validateReferences(
	ctx context.Context, byEntity map[string][]parsed, report *Report,
) map[string][]parsed {
	registry := NewRegistry()
	valid := make(map[string][]parsed)

	for level := 0; level <= maxLevel(); level++ {
		levelValid := make(map[string][]parsed)

		for _, spec := range entitySpecs {
			if spec.level != level {
				continue
			}
			records := byEntity[spec.name]
			if len(records) == 0 {
				continue
			}

			passed := make([]bool, len(records))
			var (
				mu   sync.Mutex
				errs []RecordError
				wg   sync.WaitGroup
			)
			for i := range records {
				wg.Add(1)
				i := i
				task := func() {
					defer wg.Done()
					recErrs := checkForeignKeys(records[i], registry)
					if len(recErrs) == 0 {
						passed[i] = true
						return
					}
					mu.Lock()
					errs = append(errs, recErrs...)
					mu.Unlock()
				}
				if err := l.pool.Submit(task); err != nil {
					task()
				}
			}
			wg.Wait()

			sort.Slice(errs, func(a, b int) bool { return errs[a].Index < errs[b].Index })
			report.Errors = append(report.Errors, errs...)

			for i, p := range records {
				if passed[i] {
					levelValid[spec.name] = append(levelValid[spec.name], p)
				}
			}
		}

		// Registry gains this level's IDs only now, after the level is done.
		for name, records := range levelValid {
			ids := make([]string, 0, len(records))
			for _, p := range records {
				ids = append(ids, p.rec.EntityID())
			}
			registry.Add(name, ids...)
			valid[name] = records
		}
	}
	return valid
}

func checkForeignKeys(p parsed, registry *Registry) []RecordError {
	var errs []RecordError
	for _, fk := range p.rec.ForeignKeys() {
		if fk.Value == "" {
			if fk.Optional {
				continue
			}
			// Required-but-empty is caught by schema validation; belt only.
			continue
		}
		if !registry.Has(fk.TargetType, fk.Value) {
			err := domain.NewReferentialIntegrityError(fk.Field, fk.Value, fk.TargetType)
			errs = append(errs, RecordError{
				File: p.file, Index: p.index,
				Kind: KindReferential, Message: err.Error(),
			})
		}
	}
	return errs
}

// preClear drops stored master data. Knowledge documents are left alone;
// they are archived through the lifecycle, never bulk-erased.
func (l *Loader) preClear(ctx context.Context) error {
	for _, spec := range entitySpecs {
		if spec.name == "knowledge_documents" {
			continue
		}
		keys, err := l.store.Scan(ctx, masterKeyPattern(spec.name))
		if err != nil {
			return fmt.Errorf("scan %s for pre-clear: %w", spec.name, err)
		}
		for _, key := range keys {
			if err := l.store.Del(ctx, key); err != nil {
				return fmt.Errorf("pre-clear %s: %w", key, err)
			}
		}
		l.log.Info("pre-cleared collection",
			zap.String("entity", spec.name), zap.Int("deleted", len(keys)))
	}
	return nil
}

// load is phase 3: upsert in dependency-level order. Upserts make reruns
// safe; an existing seed document is skipped, not duplicated.
func (l *Loader) load(ctx context.Context, valid map[string][]parsed, report *Report) error {
	for level := 0; level <= maxLevel(); level++ {
		for _, spec := range entitySpecs {
			if spec.level != level {
				continue
			}
			for _, p := range valid[spec.name] {
				if err := l.upsert(ctx, spec.name, p.rec); err != nil {
					return fmt.Errorf("load %s[%d] from %s: %w", spec.name, p.index, p.file, err)
				}
				report.Loaded[spec.name]++
			}
		}
	}
	return nil
}

func (l *Loader) upsert(ctx context.Context, entity string, rec record) error {
	if k, ok := rec.(*KnowledgeDocument); ok {
		meta := domdoc.Metadata{
			Author: k.Author,
			Source: k.Source,
			Region: k.RegionID,
			Tags:   k.Tags,
		}
		_, err := l.docs.Create(ctx, k.DocumentID, k.Title, domdoc.Domain(k.Domain), k.Content, meta)
		if err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				return nil // already seeded
			}
			return fmt.Errorf("create document: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	key := masterKey(entity, rec.EntityID())
	if err := l.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

// verify is phase 4: compare stored counts against the validation
// expectation. Mismatches are reported, never rolled back.
func (l *Loader) verify(ctx context.Context, valid map[string][]parsed, report *Report) error {
	for name, records := range valid {
		keys, err := l.store.Scan(ctx, countPattern(name))
		if err != nil {
			return fmt.Errorf("count %s: %w", name, err)
		}
		delta := CountDelta{Expected: len(records), Actual: len(keys)}
		report.Counts[name] = delta
		if delta.Mismatch() {
			l.log.Warn("post-load count mismatch",
				zap.String("entity", name),
				zap.Int("expected", delta.Expected),
				zap.Int("actual", delta.Actual),
			)
		}
	}
	return nil
}

func masterKey(entity, id string) string {
	return fmt.Sprintf("%smaster:%s:%s", domain.KeyPrefix, entity, id)
}

func masterKeyPattern(entity string) string {
	return fmt.Sprintf("%smaster:%s:*", domain.KeyPrefix, entity)
}

func countPattern(entity string) string {
	if entity == "knowledge_documents" {
		return domain.KeyPrefix + "dochead:*"
	}
	return masterKeyPattern(entity)
}
