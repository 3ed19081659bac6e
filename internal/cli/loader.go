package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/soqlkit/internal/compiler"
	"github.com/roach88/soqlkit/internal/config"
	"github.com/roach88/soqlkit/internal/ir"
)

// LoadResult contains the entities loaded from a CUE file or directory.
type LoadResult struct {
	Path      string
	Catalog   ir.Catalog
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during entity loading.
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

// LoadEntities loads and compiles the entity declarations at path, which
// may be a single .cue file or a directory of them.
func LoadEntities(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("entities path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing entities path: %v", err)}
	}

	count := 1
	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(cueFiles) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		count = len(cueFiles)
	}

	catalog, err := compiler.LoadEntities(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	if len(catalog) == 0 {
		return nil, &LoadError{Code: ErrCodeNoEntities, Message: fmt.Sprintf("no entities declared in %s", path)}
	}

	return &LoadResult{Path: path, Catalog: catalog, FileCount: count}, nil
}

// FindCUEFiles returns the .cue files directly inside dir. CUE loads one
// package per directory, so subdirectories are not searched.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// entitiesPath picks the entities argument when given, else the
// configured entities path.
func entitiesPath(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg != nil && cfg.Entities != "" {
		return cfg.Entities, nil
	}
	return "", &LoadError{Code: ErrCodeNotFound, Message: "no entities path given and none configured"}
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
	}
}

// loadErrorCode returns the code of a LoadError, or ErrCodeGeneric.
func loadErrorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeNoEntities  = "E006" // No entities declared
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeConfig      = "E008" // Config load error
	ErrCodeJournal     = "E009" // Journal open/read error

	// Entity declaration errors
	ErrCodeCUESyntax       = "E100" // CUE syntax or evaluation error
	ErrCodeEntityName      = "E101" // Missing entity name
	ErrCodeInvalidType     = "E104" // Unknown field type
	ErrCodeDuplicateEntity = "E110" // Two declarations share a remote name

	// Query errors
	ErrCodeInvalidQuery = "E200" // Query flags do not describe a valid relation
	ErrCodeCompile      = "E201" // Relation could not be rendered as SOQL
	ErrCodeRemote       = "E300" // Remote call failed
	ErrCodeNotRecorded  = "E301" // Replayed session lacks the call
	ErrCodeSandbox      = "E302" // Write refused in sandbox mode
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeCUESyntax
	case field == "name":
		return ErrCodeEntityName
	case field == "type":
		return ErrCodeInvalidType
	case strings.HasPrefix(field, "entity."):
		return ErrCodeDuplicateEntity
	default:
		return ErrCodeGeneric
	}
}
