package compiler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/backoffice/internal/page"
)

// Load error codes.
const (
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
)

// LoadError represents an error that occurred while loading page files.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadFS compiles every top-level .cue file of fsys as one configuration.
// Files are plain CUE without imports; each contributes `page: name: {...}`
// entries.
func LoadFS(fsys fs.FS, handlers HandlerSet) (*page.Catalogue, error) {
	names, err := fs.Glob(fsys, "*.cue")
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	if len(names) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found"}
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", name, err)}
		}
		f := ctx.CompileBytes(data, cue.Filename(name))
		if err := f.Err(); err != nil {
			return nil, buildError(err)
		}
		v = v.Unify(f)
	}
	return compilePages(v, handlers)
}

// LoadDir loads the CUE package in dir the way the cue tool would, then
// applies the page schema.
func LoadDir(dir string, handlers HandlerSet) (*page.Catalogue, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("pages directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing pages directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	if len(inst.BuildFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, buildError(err)
	}
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	return compilePages(schema.Unify(value), handlers)
}

// Load returns the built-in pages, overridden page by page with those in
// dir when dir is set.
func Load(dir string, handlers HandlerSet) (*page.Catalogue, error) {
	cat, err := LoadFS(page.Defaults(), handlers)
	if err != nil {
		return nil, fmt.Errorf("built-in pages: %w", err)
	}
	if dir == "" {
		return cat, nil
	}
	custom, err := LoadDir(dir, handlers)
	if err != nil {
		return nil, err
	}
	return cat.Override(custom), nil
}

// compilePages compiles and validates every entry under `page`. All
// errors are collected.
func compilePages(v cue.Value, handlers HandlerSet) (*page.Catalogue, error) {
	if err := v.Validate(); err != nil {
		return nil, buildError(err)
	}

	pagesVal := v.LookupPath(cue.ParsePath("page"))
	if !pagesVal.Exists() {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no pages defined"}
	}
	iter, err := pagesVal.Fields()
	if err != nil {
		return nil, buildError(err)
	}

	var (
		pages []*page.Page
		errs  []error
	)
	for iter.Next() {
		p, err := CompilePage(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("page %s: %w", iter.Selector().Unquoted(), err))
			continue
		}
		for _, ve := range Validate(p, handlers) {
			errs = append(errs, ve)
		}
		pages = append(pages, p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(pages) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no pages defined"}
	}
	return page.NewCatalogue(pages...)
}

func buildError(err error) error {
	if ce, ok := formatCUEError(err).(*CompileError); ok {
		return &LoadError{Code: ErrCodeBuildFailed, Message: ce.Message, Pos: ce.Pos}
	}
	return &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
}
