package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/compiler"
	"github.com/roach88/peephole/internal/legal"
	"github.com/roach88/peephole/internal/rules"
)

// LoadMode controls how errors are handled during configuration loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult is a compiled configuration directory.
type LoadResult struct {
	Bundle    *compiler.Bundle
	CUEValue  cue.Value // the raw CUE value for additional processing
	FileCount int       // number of CUE files found
}

// LoadError represents an error that occurred during configuration loading.
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

// CLIError converts e for the formatter.
func (e *LoadError) CLIError() CLIError {
	c := CLIError{Code: e.Code, Message: e.Message}
	if e.Pos.IsValid() {
		c.Line = e.Pos.Line()
	}
	return c
}

// LoadConfig loads and compiles the CUE combiner and target declarations
// in dir. A nil LoadResult means nothing could be compiled; otherwise the
// errors are per-declaration compile failures.
func LoadConfig(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	bundle, compileErrs := compiler.CompileBundle(value)
	result := &LoadResult{Bundle: bundle, CUEValue: value, FileCount: len(cueFiles)}

	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}
	if len(bundle.Combiners) == 0 && len(bundle.Targets) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no combiners or targets found in config"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with
// position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// asLoadError returns err as a LoadError, converting it if needed.
func asLoadError(err error) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	return convertCompileError(err)
}

// Error code constants - unified across all CLI commands. Validation codes
// E2xx come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeParseFailed = "E008" // IR text did not parse

	ErrCodeMissingTarget = "E101" // combiner without a target, or a target that is not a struct
	ErrCodeFieldType     = "E102" // field of the wrong CUE kind
	ErrCodeCUE           = "E103" // CUE evaluation error with position
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "target":
		return ErrCodeMissingTarget
	case "cue":
		return ErrCodeCUE
	case "max_iterations", "allow_illegal", "dce", "detect_cycles", "rules", "rules.disable", "rules.only_enable":
		return ErrCodeFieldType
	default:
		return ErrCodeGeneric
	}
}

// DefaultCombiner is the combiner run when --combiner is not given.
const DefaultCombiner = "postlegalizer"

// EngineSource resolves combiners and targets either from a compiled
// configuration directory or from the built-in defaults.
type EngineSource struct {
	Bundle *compiler.Bundle // nil means built-ins only
	Rules  *combine.Table
}

// NewEngineSource loads dir when it is not empty.
func NewEngineSource(dir string) (*EngineSource, error) {
	src := &EngineSource{Rules: rules.Table()}
	if dir == "" {
		return src, nil
	}
	result, errs := LoadConfig(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	src.Bundle = result.Bundle
	return src, nil
}

// Resolve returns the configuration and target table of a combiner. With
// no bundle, or a name the bundle does not declare, the default
// configuration runs on the named built-in target.
func (s *EngineSource) Resolve(combiner, target string) (combine.Config, string, *legal.Table, error) {
	if s.Bundle != nil {
		if spec, ok := s.Bundle.Combiner(combiner); ok {
			table, err := s.Bundle.TargetTable(spec.Target)
			if err != nil {
				return combine.Config{}, "", nil, fmt.Errorf("combiner %s: %w", combiner, err)
			}
			return spec.Config, spec.Target, table, nil
		}
		if combiner != DefaultCombiner {
			return combine.Config{}, "", nil, fmt.Errorf("unknown combiner %q", combiner)
		}
	} else if combiner != DefaultCombiner {
		return combine.Config{}, "", nil, fmt.Errorf("unknown combiner %q: no --config given", combiner)
	}

	table, err := s.TargetTable(target)
	if err != nil {
		return combine.Config{}, "", nil, err
	}
	cfg := combine.DefaultConfig()
	return cfg, target, table, nil
}

// TargetTable resolves a target by name, declared targets first.
func (s *EngineSource) TargetTable(name string) (*legal.Table, error) {
	if s.Bundle != nil {
		return s.Bundle.TargetTable(name)
	}
	mk, ok := compiler.BuiltinTargets[name]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", name)
	}
	return mk(), nil
}
