// Package id generates identifiers for workers, option scripts and
// capability calls.
//
// Workers and scripts use ULIDs so that logs and listings sort by creation
// time. Capability calls use random UUIDs; they only need to be unique among
// the calls in flight on one channel.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// WorkerID identifies one isolated context.
type WorkerID string

// ScriptRef is a URL-like reference to loadable option source.
type ScriptRef string

// CallID correlates a capability call with its result.
type CallID string

const (
	WorkerPrefix = "wrk"
	ScriptScheme = "blob:"
)

// Generator produces ULIDs from a single entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string.
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewWorkerID generates a worker ID.
func NewWorkerID() WorkerID {
	return WorkerID(Default().GenerateWithPrefix(WorkerPrefix))
}

// NewScriptRef generates a script reference.
func NewScriptRef() ScriptRef {
	return ScriptRef(ScriptScheme + Default().GenerateString())
}

// NewCallID generates a capability call ID.
func NewCallID() CallID {
	return CallID(uuid.NewString())
}

func (id WorkerID) String() string  { return string(id) }
func (id ScriptRef) String() string { return string(id) }
func (id CallID) String() string    { return string(id) }

// IsScriptRef reports whether s has the shape of a script reference.
func IsScriptRef(s string) bool {
	rest, ok := strings.CutPrefix(s, ScriptScheme)
	return ok && IsValid(rest)
}

// IsValid checks if an ID string is a valid ULID.
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Parse parses a ULID string.
func Parse(id string) (ulid.ULID, error) {
	return ulid.Parse(id)
}

// Timestamp extracts the creation time from a ULID, with or without a
// worker prefix.
func Timestamp(id string) (time.Time, error) {
	if _, rest, ok := strings.Cut(id, "_"); ok {
		id = rest
	}
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
