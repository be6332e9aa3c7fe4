// Package workflow parses YAML workflow definitions into core.WorkflowModel.
package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/fsutil"
)

// DefaultCacheSize bounds the number of parsed workflows kept in memory.
const DefaultCacheSize = 128

// fileStamp identifies one version of a file on disk.
type fileStamp struct {
	exists  bool
	modTime time.Time
	size    int64
}

func stampOf(info os.FileInfo) fileStamp {
	return fileStamp{exists: true, modTime: info.ModTime(), size: info.Size()}
}

func statStamp(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return stampOf(info)
}

func (s fileStamp) same(o fileStamp) bool {
	return s.exists == o.exists && s.size == o.size && s.modTime.Equal(o.modTime)
}

type cacheEntry struct {
	file    fileStamp
	prompts map[string]fileStamp // resolved prompt path -> stamp at parse time
	model   *core.WorkflowModel
}

// fresh reports whether neither the workflow file nor any prompt file it
// references changed since the entry was cached.
func (e cacheEntry) fresh(file fileStamp) bool {
	if !e.file.same(file) {
		return false
	}
	for path, stamp := range e.prompts {
		if !statStamp(path).same(stamp) {
			return false
		}
	}
	return true
}

// Parser reads workflow files and resolves their prompts. Parsed models are
// cached by path and invalidated when the workflow file, or a prompt file it
// references by src, changes on disk; callers must treat returned models as
// read-only. Fallback prompts are resolved when they run and are not cached.
type Parser struct {
	resolver core.PromptResolver
	cache    *lru.Cache[string, cacheEntry]
}

var _ core.WorkflowParser = (*Parser)(nil)

// NewParser creates a parser. A nil resolver reads prompt files from disk.
func NewParser(resolver core.PromptResolver, cacheSize int) *Parser {
	if resolver == nil {
		resolver = FileResolver{}
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	// lru.New only errors on non-positive sizes.
	cache, _ := lru.New[string, cacheEntry](cacheSize)
	return &Parser{resolver: resolver, cache: cache}
}

// Parse loads the workflow at path.
func (p *Parser) Parse(ctx context.Context, path string) (*core.WorkflowModel, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, core.ErrNotFound("workflow", path)
	}
	if err != nil {
		return nil, core.ErrValidation(core.CodeInvalidWorkflow, "reading workflow").WithCause(err).WithDetail("path", path)
	}

	key := cacheKey(path)
	stamp := stampOf(info)
	if entry, ok := p.cache.Get(key); ok && entry.fresh(stamp) {
		return entry.model, nil
	}

	data, err := fsutil.ReadFile(path, 0)
	if err != nil {
		return nil, core.ErrValidation(core.CodeInvalidWorkflow, "reading workflow").WithCause(err).WithDetail("path", path)
	}
	model, err := p.ParseBytes(ctx, path, data)
	if err != nil {
		return nil, err
	}

	p.cache.Add(key, cacheEntry{file: stamp, prompts: promptStamps(path, model), model: model})
	return model, nil
}

// promptStamps stats every prompt file model was built from.
func promptStamps(path string, model *core.WorkflowModel) map[string]fileStamp {
	var srcs []string
	add := func(infos ...core.PromptInfo) {
		for _, info := range infos {
			if info.Src != "" {
				srcs = append(srcs, info.Src)
			}
		}
	}
	add(model.LaunchPrompt)
	add(model.UpdatePrompts...)
	if model.Parallel != nil {
		add(model.Parallel.ParallelPrompt)
		for _, seq := range model.Parallel.Sequences {
			add(seq.Prompts...)
		}
	}

	stamps := make(map[string]fileStamp, len(srcs))
	for _, src := range srcs {
		resolved := ResolvePath(path, src)
		stamps[resolved] = statStamp(resolved)
	}
	return stamps
}

// ParseBytes parses a workflow document; path locates referenced prompt files.
func (p *Parser) ParseBytes(ctx context.Context, path string, data []byte) (*core.WorkflowModel, error) {
	var doc file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.ErrValidation(core.CodeInvalidWorkflow, "workflow is empty").WithDetail("path", path)
		}
		return nil, core.ErrValidation(core.CodeParseFailed, "invalid workflow yaml").WithCause(err).WithDetail("path", path)
	}

	model, err := p.build(ctx, path, &doc)
	if err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, withPath(err, path)
	}
	return model, nil
}

// Invalidate drops a cached model.
func (p *Parser) Invalidate(path string) {
	p.cache.Remove(cacheKey(path))
}

// Len reports how many models are cached.
func (p *Parser) Len() int {
	return p.cache.Len()
}

func (p *Parser) build(ctx context.Context, path string, doc *file) (*core.WorkflowModel, error) {
	model := &core.WorkflowModel{
		Model:         doc.Model,
		Repository:    doc.Repository,
		TimeoutMillis: int64(doc.Timeout),
		FallbackSrc:   doc.Fallback,
	}

	if doc.Parallel == nil {
		if doc.Launch == nil {
			return nil, core.ErrValidation(core.CodeMissingPrompts, "launch prompt is required").WithDetail("path", path)
		}
		launch, err := p.prompt(ctx, path, *doc.Launch)
		if err != nil {
			return nil, err
		}
		model.LaunchPrompt = launch
		for _, ref := range doc.Updates {
			update, err := p.prompt(ctx, path, ref)
			if err != nil {
				return nil, err
			}
			model.UpdatePrompts = append(model.UpdatePrompts, update)
		}
		return model, nil
	}

	if doc.Launch != nil || len(doc.Updates) > 0 {
		return nil, core.ErrValidation(core.CodeInvalidWorkflow, "parallel workflows declare prompts per sequence").WithDetail("path", path)
	}

	par := &core.ParallelWorkflowData{
		BindResultType: doc.Parallel.BindResultType,
		TimeoutMillis:  int64(doc.Parallel.Timeout),
		FallbackSrc:    doc.Parallel.Fallback,
	}
	if doc.Parallel.Prompt != nil {
		prompt, err := p.prompt(ctx, path, *doc.Parallel.Prompt)
		if err != nil {
			return nil, err
		}
		par.ParallelPrompt = prompt
		model.LaunchPrompt = prompt
	}
	for i, s := range doc.Parallel.Sequences {
		seq := core.SequenceInfo{
			Model:         s.Model,
			Repository:    s.Repository,
			TimeoutMillis: int64(s.Timeout),
			FallbackSrc:   s.Fallback,
		}
		for _, ref := range s.Prompts {
			prompt, err := p.prompt(ctx, path, ref)
			if err != nil {
				return nil, withDetail(err, "sequence", i)
			}
			seq.Prompts = append(seq.Prompts, prompt)
		}
		par.Sequences = append(par.Sequences, seq)
	}
	model.Parallel = par
	return model, nil
}

func (p *Parser) prompt(ctx context.Context, path string, ref promptRef) (core.PromptInfo, error) {
	info := core.PromptInfo{Src: ref.Src, Type: ref.kind()}
	if ref.Src == "" {
		if ref.Text == "" {
			return info, core.ErrValidation(core.CodeEmptyPrompt, "prompt has neither src nor text").WithDetail("path", path)
		}
		info.Content = ref.Text
		return info, nil
	}
	content, err := p.resolver.ResolvePrompt(ctx, path, ref.Src)
	if err != nil {
		return info, fmt.Errorf("resolving prompt %s: %w", ref.Src, err)
	}
	info.Content = content
	return info, nil
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func withPath(err error, path string) error {
	return withDetail(err, "path", path)
}

func withDetail(err error, key string, value any) error {
	var de *core.DomainError
	if errors.As(err, &de) {
		de.WithDetail(key, value)
	}
	return err
}
