package rules

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/solatis/mailrules/internal/types"
)

const sampleRules = `[
  {
    "name": "Important from test",
    "description": "Move important mail from test@example.com",
    "type": "all",
    "condition": [
      {"field": "from", "predicate": "contains", "value": "test@example.com"},
      {"field": "subject", "predicate": "contains", "value": "important"}
    ],
    "action": [
      {"type": "move", "value": "TestLabel"},
      {"type": "mark", "value": "read"}
    ]
  },
  {
    "Name": "Old newsletters",
    "Description": "",
    "Type": "any",
    "Condition": [
      {"Field": "Date Received", "Predicate": "greater than", "Value": "1 M"}
    ],
    "Action": []
  }
]`

func TestDecodeRules(t *testing.T) {
	docs, err := DecodeRules(strings.NewReader(sampleRules))
	if err != nil {
		t.Fatalf("DecodeRules() error = %v, want nil", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[1].Name != "Old newsletters" || docs[1].Condition[0].Field != "Date Received" {
		t.Errorf("docs[1] = %+v, want case-insensitive keys decoded", docs[1])
	}
	if _, err := CompileAll(docs); err != nil {
		t.Errorf("CompileAll() error = %v, want nil", err)
	}
}

func TestDecodeRules_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "missing condition key", input: `[{"name":"a","description":"","type":"all","action":[]}]`, wantErr: types.ErrMissingKey},
		{name: "missing value key", input: `[{"name":"a","description":"","type":"all","condition":[{"field":"from","predicate":"contains"}],"action":[]}]`, wantErr: types.ErrMissingKey},
		{name: "missing action type", input: `[{"name":"a","description":"","type":"all","condition":[],"action":[{"value":"x"}]}]`, wantErr: types.ErrMissingKey},
		{name: "not an array", input: `{"name":"a"}`},
		{name: "trailing data", input: `[] []`},
		{name: "trailing close bracket", input: `[] ]`},
		{name: "trailing close brace", input: `[] }`},
		{name: "empty input", input: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRules(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("DecodeRules() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeRules() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeRules_RoundTrip(t *testing.T) {
	docs, err := DecodeRules(strings.NewReader(sampleRules))
	if err != nil {
		t.Fatalf("DecodeRules() error = %v, want nil", err)
	}
	rules, err := CompileAll(docs)
	if err != nil {
		t.Fatalf("CompileAll() error = %v, want nil", err)
	}

	var buf bytes.Buffer
	if err := EncodeRules(&buf, Documents(rules)); err != nil {
		t.Fatalf("EncodeRules() error = %v, want nil", err)
	}

	again, err := DecodeRules(&buf)
	if err != nil {
		t.Fatalf("DecodeRules(encoded) error = %v, want nil", err)
	}
	recompiled, err := CompileAll(again)
	if err != nil {
		t.Fatalf("CompileAll(encoded) error = %v, want nil", err)
	}
	if !reflect.DeepEqual(Documents(recompiled), Documents(rules)) {
		t.Errorf("round trip changed rules:\n got %+v\nwant %+v", Documents(recompiled), Documents(rules))
	}
}

func TestEncodeRules_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeRules(&buf, nil); err != nil {
		t.Fatalf("EncodeRules() error = %v, want nil", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("EncodeRules(nil) = %q, want []", got)
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(path, []byte(sampleRules), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	docs, err := FileLoader{Path: path}.LoadRules(context.Background())
	if err != nil {
		t.Fatalf("LoadRules() error = %v, want nil", err)
	}
	if len(docs) != 2 {
		t.Errorf("len(docs) = %d, want 2", len(docs))
	}

	_, err = FileLoader{Path: filepath.Join(dir, "missing.json")}.LoadRules(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadRules(missing) error = %v, want os.ErrNotExist", err)
	}
}
