package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/filament-ui/filament/internal/blueprint"
)

// LoadResult is a compiled and validated blueprint plus the static cycle
// warnings found in its relay graph.
type LoadResult struct {
	Blueprint *blueprint.Blueprint
	Warnings  []blueprint.CycleWarning
}

// LoadBlueprint reads, compiles, and validates one CUE blueprint file.
//
// Errors come back in three shapes:
//   - an ExitError with ExitCommandError when the file cannot be read
//   - a *blueprint.CompileError for malformed CUE (with source position)
//   - a BlueprintInvalidError collecting all validation errors
//
// Cycle warnings never fail the load; the runtime's NO_DAG guard catches
// the loop at dispatch time, static analysis just reports it early.
func LoadBlueprint(path string) (*LoadResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("blueprint not found: %s", path), err)
	}

	bp, err := blueprint.CompileFile(path)
	if err != nil {
		return nil, err
	}

	if errs := blueprint.Validate(bp); len(errs) > 0 {
		return nil, &BlueprintInvalidError{Path: path, Errors: errs}
	}

	return &LoadResult{
		Blueprint: bp,
		Warnings:  blueprint.AnalyzeCycles(bp),
	}, nil
}

// BlueprintInvalidError aggregates the validation errors of one file.
type BlueprintInvalidError struct {
	Path   string
	Errors []blueprint.ValidationError
}

func (e *BlueprintInvalidError) Error() string {
	return fmt.Sprintf("blueprint %s invalid (%d errors):\n%s",
		e.Path, len(e.Errors), blueprint.FormatValidationErrors(e.Errors))
}

// asInvalid unwraps a BlueprintInvalidError, if err carries one.
func asInvalid(err error) (*BlueprintInvalidError, bool) {
	var ie *BlueprintInvalidError
	ok := errors.As(err, &ie)
	return ie, ok
}

// asCompile unwraps a blueprint.CompileError, if err carries one.
func asCompile(err error) (*blueprint.CompileError, bool) {
	var ce *blueprint.CompileError
	ok := errors.As(err, &ce)
	return ce, ok
}
