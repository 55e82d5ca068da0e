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

	"github.com/roach88/ceasefire/internal/config"
)

// LoadResult contains the results of loading an analysis config directory.
type LoadResult struct {
	Analysis  *config.Analysis
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during config loading.
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

// LoadAnalysis loads and compiles the analysis config from a directory of
// CUE files. The directory is built as a single CUE instance; the
// "analysis" struct is then compiled to a typed config. Compilation is
// fail-fast; semantic validation (collect-all) is the validate command's
// second pass.
func LoadAnalysis(dir string) (*LoadResult, error) {
	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir, Package: "_"}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	analysisVal := value.LookupPath(cue.ParsePath("analysis"))
	if !analysisVal.Exists() {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no \"analysis\" struct found in config"}
	}

	analysis, compileErr := config.CompileAnalysis(analysisVal)
	if compileErr != nil {
		return nil, convertCompileError(compileErr, "analysis")
	}
	result.Analysis = analysis

	return result, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a config compile error to a LoadError with
// position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *config.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStaleData   = "E008" // Stored data no longer matches a run's fingerprint

	// Config compile errors
	ErrCodeConfigName    = "E101" // Missing analysis name
	ErrCodeConfigWindows = "E102" // No ceasefire windows defined
	ErrCodeConfigDate    = "E103" // Malformed date
	ErrCodeConfigSampler = "E104" // Invalid sampler settings
)

// MapFieldToErrorCode maps a config compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "name":
		return ErrCodeConfigName
	case "windows":
		return ErrCodeConfigWindows
	case "sampler.seed":
		return ErrCodeConfigSampler
	default:
		if len(field) >= 8 && field[:8] == "windows[" {
			return ErrCodeConfigDate
		}
		return ErrCodeGeneric
	}
}
