package rag

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction = errors.New("extraction failed")
	ErrEmbedding  = errors.New("embedding failed")
	ErrGeneration = errors.New("generation failed")
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageRegister Stage = "register"
	StageExtract  Stage = "extract"
	StagePersist  Stage = "persist"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageRetrieve Stage = "retrieve"
	StageFinalize Stage = "finalize"
)

// StageError records which step failed so callers can decide retry vs abandon.
type StageError struct {
	Stage Stage
	// Chunk is the 1-based chunk index for StageEmbed, 0 otherwise.
	Chunk int
	Err   error
}

func (e *StageError) Error() string {
	if e.Chunk > 0 {
		return fmt.Sprintf("%s chunk %d: %v", e.Stage, e.Chunk, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failing stage recorded in err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
