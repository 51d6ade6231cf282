package host

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/jsworker/internal/shared/id"
	"github.com/GriffinCanCode/jsworker/internal/transport"
)

const (
	MaxIDLength   = 128
	MaxScripts    = 1024
	shortHashSize = 12
)

// safeID allows alphanumeric, hyphens, underscores
var safeID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var ErrInvalidSpawn = errors.New("invalid spawn request")

// validateSpawnRequest checks a spawn request before any code is compiled.
func validateSpawnRequest(req *transport.SpawnRequest) error {
	switch {
	case req.Source == "":
		return fmt.Errorf("%w: source is required", ErrInvalidSpawn)
	case strings.Contains(req.Source, "\x00"):
		return fmt.Errorf("%w: source contains invalid characters", ErrInvalidSpawn)
	case utf8.RuneCountInString(req.ID) > MaxIDLength:
		return fmt.Errorf("%w: id must not exceed %d characters", ErrInvalidSpawn, MaxIDLength)
	case !safeID.MatchString(req.ID):
		return fmt.Errorf("%w: id %q contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", ErrInvalidSpawn, req.ID)
	case len(req.Scripts) > MaxScripts:
		return fmt.Errorf("%w: %d scripts exceed the limit of %d", ErrInvalidSpawn, len(req.Scripts), MaxScripts)
	}

	for ref, src := range req.Scripts {
		if !id.IsScriptRef(ref) {
			return fmt.Errorf("%w: %q is not a script reference", ErrInvalidSpawn, ref)
		}
		if src == "" {
			return fmt.Errorf("%w: script %s is empty", ErrInvalidSpawn, ref)
		}
	}
	return nil
}

// sourceHash is a short content hash identifying the code a worker runs.
func sourceHash(req *transport.SpawnRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Source))
	for _, ref := range sortedKeys(req.Scripts) {
		h.Write([]byte{0})
		h.Write([]byte(req.Scripts[ref]))
	}
	return hex.EncodeToString(h.Sum(nil))[:shortHashSize]
}
