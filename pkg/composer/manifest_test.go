package composer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fixture = `{
    "name": "acme/recipe-core",
    "description": "Core recipe",
    "type": "library",
    "require": {
        "acme/framework": "^4.1.1",
        "acme/config": "self.version",
        "php": ">=8.1"
    },
    "extra": {
        "branch-alias": {
            "dev-main": "4.x-dev"
        }
    }
}
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Name != "acme/recipe-core" {
		t.Errorf("Name = %q", s.Name)
	}
	if got := s.Require["acme/framework"]; got != "^4.1.1" {
		t.Errorf("require[acme/framework] = %q", got)
	}
	if got := s.Require["acme/config"]; got != "self.version" {
		t.Errorf("require[acme/config] = %q", got)
	}
	if _, ok := s.Extra("extra"); !ok {
		t.Error("extra field not preserved")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Fatal("Parse succeeded on malformed input")
	}
}

func TestMarshalPreservesUnknownFieldsAndOrder(t *testing.T) {
	s, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s.SetRequire("acme/framework", "4.2.0")

	out, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var check map[string]json.RawMessage
	if err := json.Unmarshal(out, &check); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	for _, key := range []string{"name", "description", "type", "require", "extra"} {
		if _, ok := check[key]; !ok {
			t.Errorf("key %q lost in round trip", key)
		}
	}

	// Rewritten constraint is present, untouched ones survive.
	text := string(out)
	if !strings.Contains(text, `"acme/framework": "4.2.0"`) {
		t.Errorf("rewritten constraint missing:\n%s", text)
	}
	if !strings.Contains(text, `"php": ">=8.1"`) {
		t.Errorf("unrelated constraint lost:\n%s", text)
	}

	// name stays first: the original key order is preserved.
	if idxName, idxExtra := strings.Index(text, `"name"`), strings.Index(text, `"extra"`); idxName > idxExtra {
		t.Errorf("key order not preserved:\n%s", text)
	}
}

func TestLoadAndWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename)
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.SetRequire("acme/newdep", "^1.0")
	if err := s.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Require["acme/newdep"] != "^1.0" {
		t.Errorf("added dependency lost: %v", again.Require)
	}
}
