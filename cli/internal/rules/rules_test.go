package rules

import (
	"reflect"
	"strings"
	"testing"

	"bugscope/cli/internal/findings"
	"bugscope/cli/internal/sniff"
)

func ruleIDs(list []findings.Finding) []string {
	out := make([]string, 0, len(list))
	for _, f := range list {
		out = append(out, f.RuleID)
	}
	return out
}

func containsMessage(list []findings.Finding, sub string) bool {
	sub = strings.ToLower(sub)
	for _, f := range list {
		if strings.Contains(strings.ToLower(f.Message), sub) {
			return true
		}
	}
	return false
}

func TestCheck_cppScenario_memoryLeakAndUninitialized(t *testing.T) {
	t.Parallel()
	code := "#include <iostream>\nint x;\nnew int[5];\n"
	got := Check(code, sniff.Cpp)
	if !containsMessage(got, "memory leak") {
		t.Errorf("findings %v missing memory leak", findings.Messages(got))
	}
	if !containsMessage(got, "uninitialized variable") {
		t.Errorf("findings %v missing uninitialized variable", findings.Messages(got))
	}
	if want := []string{"CP001", "CP004", "CP005"}; !reflect.DeepEqual(ruleIDs(got), want) {
		t.Errorf("rule ids = %v, want %v", ruleIDs(got), want)
	}
}

func TestCheck_pythonScenario_mutableDefaultAndNoReturn(t *testing.T) {
	t.Parallel()
	code := "def f(x=[]):\n    pass\n"
	got := Check(code, sniff.Python)
	if !containsMessage(got, "mutable default argument") {
		t.Errorf("findings %v missing mutable default argument", findings.Messages(got))
	}
	if !containsMessage(got, "function may not return a value") {
		t.Errorf("findings %v missing function may not return a value", findings.Messages(got))
	}
	if len(got) != 2 {
		t.Errorf("len(findings) = %d, want 2", len(got))
	}
}

func TestCheck_javaScenario_infiniteLoop(t *testing.T) {
	t.Parallel()
	code := "public class Main { public static void main(String[] a) { while(true) {} } }"
	got := Check(code, sniff.Java)
	if !containsMessage(got, "infinite loop detected") {
		t.Errorf("findings %v missing infinite loop detected", findings.Messages(got))
	}
}

func TestCheck_unknownLanguage_returnsEmpty(t *testing.T) {
	t.Parallel()
	got := Check("new int[5]; while True: pass", sniff.Unknown)
	if got == nil || len(got) != 0 {
		t.Errorf("Check(unknown) = %#v, want empty non-nil slice", got)
	}
}

func TestCheck_allRulesFire_noShortCircuit(t *testing.T) {
	t.Parallel()
	code := "char buf[8];\nint n;\nstrcpy(buf, src);\np->x = 1;\nint *q = new int;\n"
	got := Check(code, sniff.Cpp)
	want := []string{"CP001", "CP002", "CP003", "CP004", "CP005"}
	if !reflect.DeepEqual(ruleIDs(got), want) {
		t.Errorf("rule ids = %v, want %v", ruleIDs(got), want)
	}
	if sev := findings.SeverityFor(len(got)); sev != findings.SeverityHigh {
		t.Errorf("severity = %q, want high", sev)
	}
}

func TestRules_individually(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lang sniff.Language
		id   string
		hit  string
		miss string
	}{
		{sniff.Python, "PY001", "def f(a, b={}):\n    return b", "def f(a, b=None):\n    return b"},
		{sniff.Python, "PY002", "try:\n    x()\nexcept:\n    pass", "try:\n    x()\nexcept ValueError:\n    pass"},
		{sniff.Python, "PY003", "def f():\n    pass", "def f():\n    return 1"},
		{sniff.Python, "PY004", "while True:\n    poll()", "while True:\n    if done():\n        break"},
		{sniff.Java, "JV001", "int n = arr.length;", "if (arr != null) { int n = arr.length; }"},
		{sniff.Java, "JV002", "FileInputStream in = new FileInputStream(f);", "FileInputStream in = new FileInputStream(f); in.close();"},
		{sniff.Java, "JV003", "while(true) { tick(); }", "while (running) { tick(); }"},
		{sniff.Java, "JV004", "throw new IllegalStateException();", "void f() throws IOException { throw new IOException(); }"},
		{sniff.Java, "JV005", "switch (x) { case 1: a(); case 2: b(); }", "switch (x) { case 1: a(); break; }"},
		{sniff.Cpp, "CP001", "int *p = new int(3);", "int *p = new int(3); delete p;"},
		{sniff.Cpp, "CP002", "node->next = 0;", "if (node != 0) node->next = 0;"},
		{sniff.Cpp, "CP003", "sprintf(buf, \"%d\", n);", "snprintf(buf, sizeof buf, \"%d\", n);"},
		{sniff.Cpp, "CP004", "double total;", "double total = 0.0;"},
		{sniff.Cpp, "CP005", "v[i] = 1;", "if (i < n) /* bounds */ v[i] = 1;"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			var rule *Rule
			for _, r := range Catalog(tt.lang) {
				if r.ID == tt.id {
					r := r
					rule = &r
					break
				}
			}
			if rule == nil {
				t.Fatalf("rule %s not in %s catalog", tt.id, tt.lang)
			}
			if !rule.Evaluate(tt.hit) {
				t.Errorf("%s did not fire on %q", tt.id, tt.hit)
			}
			if rule.Evaluate(tt.miss) {
				t.Errorf("%s fired on %q", tt.id, tt.miss)
			}
		})
	}
}

func TestCatalog_entriesAreValid(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	for _, lang := range sniff.Supported {
		cat := Catalog(lang)
		if len(cat) == 0 {
			t.Errorf("Catalog(%s) is empty", lang)
		}
		for _, r := range cat {
			if seen[r.ID] {
				t.Errorf("duplicate rule id %s", r.ID)
			}
			seen[r.ID] = true
			f := r.finding(lang)
			if err := f.Validate(); err != nil {
				t.Errorf("rule %s: %v", r.ID, err)
			}
			if r.When == nil {
				t.Errorf("rule %s has nil condition", r.ID)
			}
		}
	}
	if Catalog(sniff.Unknown) != nil {
		t.Error("Catalog(unknown) != nil")
	}
}

func TestCatalog_returnsCopy(t *testing.T) {
	t.Parallel()
	cat := Catalog(sniff.Python)
	cat[0].Message = "changed"
	if Catalog(sniff.Python)[0].Message == "changed" {
		t.Error("mutating Catalog() result changed the package table")
	}
}

func TestCheck_deterministic(t *testing.T) {
	t.Parallel()
	code := "def f(x=[]):\n    while True:\n        pass\n"
	first := Check(code, sniff.Python)
	for i := 0; i < 3; i++ {
		if got := Check(code, sniff.Python); !reflect.DeepEqual(got, first) {
			t.Fatalf("Check run %d = %v, want %v", i, got, first)
		}
	}
}

func TestCheck_javaReadersAndSpacedLoop_noFindings(t *testing.T) {
	t.Parallel()
	code := "public class A { void f(Object x) { BufferedReader r = new BufferedReader(x); while (true) { } } }"
	if got := Check(code, sniff.Java); len(got) != 0 {
		t.Errorf("Check() = %v, want no findings", ruleIDs(got))
	}
}
