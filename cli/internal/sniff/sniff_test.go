package sniff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		code string
		want Language
	}{
		{"python_def", "def f(x=[]):\n    pass\n", Python},
		{"python_import", "import os\nprint(os.getcwd())\n", Python},
		{"python_from_import", "from collections import deque\n", Python},
		{"python_main_guard", "if __name__ == '__main__':\n    run()\n", Python},
		{"python_indented_class", "    class Foo:\n        x = 1\n", Python},
		{"java_main", "public class Main { public static void main(String[] a) { while(true) {} } }", Java},
		{"java_package", "package com.example;\n\npublic final class A {}\n", Java},
		{"java_static_class", "public static class Inner {}", Java},
		{"cpp_include", "#include <iostream>\nint x;\nnew int[5];\n", Cpp},
		{"cpp_using", "using namespace std;\nint main() { return 0; }", Cpp},
		{"cpp_template", "template <typename T> T id(T v) { return v; }", Cpp},
		{"cpp_pointer", "int *p = 0;", Cpp},
		{"unknown_plain", "hello world", Unknown},
		{"unknown_empty", "", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.code))
		})
	}
}

func TestDetect_pythonWinsOverCpp(t *testing.T) {
	t.Parallel()
	code := "#include <stdio.h>\nimport os\n"
	assert.Equal(t, Python, Detect(code), "python is checked before c++")
}

func TestDetect_keywordInsideComment_notPython(t *testing.T) {
	t.Parallel()
	code := "// copy from buffer\n#include <cstring>\nvoid f(char *dst) { strcpy(dst, \"x\"); }\n"
	assert.Equal(t, Cpp, Detect(code))
	assert.Empty(t, Indicators(code)[Python])
}

func TestDetect_deterministic(t *testing.T) {
	t.Parallel()
	inputs := []string{"", "def a(): pass", "public class X {}", "int *p;", "\x00\xff garbage", "template<"}
	for _, in := range inputs {
		first := Detect(in)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Detect(in), "input %q", in)
		}
	}
}

func TestIndicators_reportsAllHits(t *testing.T) {
	t.Parallel()
	got := Indicators("#include <vector>\nusing namespace std;\n")
	assert.Equal(t, []string{"include", "using_std", "namespace"}, got[Cpp])
	_, hasPython := got[Python]
	assert.False(t, hasPython)
}

func TestParse(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Python, Parse("PY"))
	assert.Equal(t, Java, Parse("java"))
	assert.Equal(t, Cpp, Parse("c++"))
	assert.Equal(t, Unknown, Parse("rust"))
}
