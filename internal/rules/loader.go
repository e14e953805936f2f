package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/solatis/mailrules/internal/types"
)

// FileLoader reads rule documents from a JSON file (an array of rule objects).
type FileLoader struct {
	Path string
}

// LoadRules implements RuleLoader. A missing or malformed file fails the load.
func (l FileLoader) LoadRules(ctx context.Context) ([]types.RuleDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.Path, err)
	}
	docs, err := DecodeRules(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", l.Path, err)
	}
	return docs, nil
}

// DecodeRules parses a rule document array. A JSON null decodes to an empty
// RuleSet. Trailing data after the array is rejected.
func DecodeRules(r io.Reader) ([]types.RuleDocument, error) {
	dec := json.NewDecoder(r)

	var docs []types.RuleDocument
	if err := dec.Decode(&docs); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after rule array")
	}
	return docs, nil
}

// EncodeRules writes rule documents in the rules.json shape.
func EncodeRules(w io.Writer, docs []types.RuleDocument) error {
	if docs == nil {
		docs = []types.RuleDocument{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

// Documents converts compiled rules back to their wire shape.
func Documents(rules []*Rule) []types.RuleDocument {
	docs := make([]types.RuleDocument, 0, len(rules))
	for _, r := range rules {
		docs = append(docs, r.Document())
	}
	return docs
}
