// Package scanner discovers annotated functions inside a single module file.
// It evaluates the file in a throwaway, unconfigured interpreter instance and
// inspects the attributes attached to each command defined there.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/nushell-tools/nutest/interp"
	"github.com/nushell-tools/nutest/types"
)

// annotationKinds maps attribute names to annotation kinds. Attributes not in
// this table mark commands that are not test-related.
var annotationKinds = map[string]types.AnnotationKind{
	"test":        types.AnnotationTest,
	"ignore":      types.AnnotationTestSkip,
	"before-each": types.AnnotationBeforeEach,
	"before-all":  types.AnnotationBeforeAll,
	"after-each":  types.AnnotationAfterEach,
	"after-all":   types.AnnotationAfterAll,
}

// Lister is the external capability the discovery layer depends on: reflective
// inspection of the commands defined by one module file.
type Lister interface {
	ListAnnotatedFunctions(ctx context.Context, file string) ([]types.AnnotatedFunction, error)
}

// Scanner implements Lister by shelling out to the interpreter.
type Scanner struct {
	interp interp.Config
	log    log.Logger
}

// Config contains scanner configuration.
type Config struct {
	Log    log.Logger
	Interp interp.Config
}

// New creates a new scanner instance.
func New(cfg Config) *Scanner {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Scanner{
		interp: cfg.Interp,
		log:    cfg.Log,
	}
}

// ListAnnotatedFunctions evaluates file and returns the (name, kind) pairs of
// its annotated commands, in definition order. A file that fails to evaluate
// returns an error; a syntax error must not read as "no tests found".
func (s *Scanner) ListAnnotatedFunctions(ctx context.Context, file string) ([]types.AnnotatedFunction, error) {
	script := fmt.Sprintf("source %s; scope commands | select name attributes | to json", interp.QuoteLiteral(file))
	cmd := s.interp.Command(ctx, script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.log.Debug("Scanning module file", "file", file, "command", cmd.String())

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("evaluating %s: %w\nstderr: %s", file, err, stderr.String())
	}

	annotated, err := parseScopeCommands(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parsing scope of %s: %w", file, err)
	}

	s.log.Debug("Scanned module file", "file", file, "annotated", len(annotated))
	return annotated, nil
}

// scopeCommand mirrors one row of `scope commands | select name attributes`.
type scopeCommand struct {
	Name       string `json:"name"`
	Attributes []struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	} `json:"attributes"`
}

// parseScopeCommands maps the interpreter's scope listing through the
// annotation table. Commands without a recognized attribute are absent from
// the result.
func parseScopeCommands(data []byte) ([]types.AnnotatedFunction, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty scope listing")
	}

	var commands []scopeCommand
	if err := json.Unmarshal(data, &commands); err != nil {
		return nil, fmt.Errorf("decoding scope listing: %w", err)
	}

	var annotated []types.AnnotatedFunction
	for _, cmd := range commands {
		for _, attr := range cmd.Attributes {
			kind, ok := annotationKinds[strings.TrimSpace(attr.Name)]
			if !ok {
				continue
			}
			annotated = append(annotated, types.AnnotatedFunction{Name: cmd.Name, Kind: kind})
			break
		}
	}
	return annotated, nil
}
