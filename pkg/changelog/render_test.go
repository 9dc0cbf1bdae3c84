package changelog

import (
	"strings"
	"testing"
)

func TestUpdateContentReplacesBetweenDelimiters(t *testing.T) {
	existing := "# History\n\nHand-written intro.\n\n" +
		DelimiterStart + "\nold generated body\n" + DelimiterEnd + "\n\nHand-written outro.\n"

	first, appended := UpdateContent(existing, "first run")
	if appended {
		t.Fatal("delimiters were present, nothing should be appended")
	}
	second, appended := UpdateContent(first, "second run")
	if appended {
		t.Fatal("delimiters survived the first update")
	}

	if !strings.Contains(second, DelimiterStart+"\nsecond run\n"+DelimiterEnd) {
		t.Errorf("inner content not replaced:\n%s", second)
	}
	if strings.Contains(second, "first run") || strings.Contains(second, "old generated body") {
		t.Error("stale generated content survived")
	}

	// Everything outside the delimiters is untouched across both runs.
	stripInner := func(s string) string {
		start := strings.Index(s, DelimiterStart)
		end := strings.Index(s, DelimiterEnd) + len(DelimiterEnd)
		return s[:start] + s[end:]
	}
	if stripInner(first) != stripInner(existing) || stripInner(second) != stripInner(first) {
		t.Error("content outside the delimiters changed")
	}
}

func TestUpdateContentAppendsWhenDelimitersMissing(t *testing.T) {
	got, appended := UpdateContent("# History\n\nNo markers here.\n", "generated body")
	if !appended {
		t.Fatal("missing delimiters should report the append fallback")
	}
	if !strings.HasPrefix(got, "# History\n\nNo markers here.\n") {
		t.Error("existing prose not preserved")
	}
	if !strings.Contains(got, DelimiterStart+"\ngenerated body\n"+DelimiterEnd) {
		t.Errorf("generated block missing:\n%s", got)
	}

	got, appended = UpdateContent("", "generated body")
	if !appended || !strings.HasPrefix(got, DelimiterStart) {
		t.Errorf("empty file should get a fresh block, got %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatGrouped {
		t.Errorf("default format = %v, %v", f, err)
	}
	for _, valid := range []string{"grouped", "flat", "library"} {
		if _, err := ParseFormat(valid); err != nil {
			t.Errorf("ParseFormat(%q) = %v", valid, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}
