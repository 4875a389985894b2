package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/logrusorgru/aurora"
)

func TestDumpSections(t *testing.T) {
	var buf bytes.Buffer
	if err := dump(&buf, testSource, aurora.NewAurora(false)); err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Tokens (",
		"ForStmt(",
		"AST (full)",
		"Value: (int64) 3",
		"Locals:\n  a ",
		"  i                     Offset: 16\n",
		"Generated Assembly",
		"sub rsp, 208",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected dump to contain %q\n%s", want, out)
		}
	}
	full := out[strings.Index(out, "AST (full)"):]
	if strings.Contains(full, "ForStmt(") {
		t.Errorf("expected full dump to show struct fields, not String forms")
	}
	if strings.Contains(out, "0xc0") {
		t.Errorf("expected no pointer addresses in dump")
	}
}

func TestDumpDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := dump(&a, testSource, aurora.NewAurora(false)); err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if err := dump(&b, testSource, aurora.NewAurora(false)); err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if a.String() != b.String() {
		t.Errorf("expected identical dumps")
	}
}

func TestDumpReportsStage(t *testing.T) {
	var buf bytes.Buffer
	err := dump(&buf, "a = ;", aurora.NewAurora(false))
	if err == nil || !strings.HasPrefix(err.Error(), "parse error") {
		t.Errorf("expected parse error, got %v", err)
	}
}
