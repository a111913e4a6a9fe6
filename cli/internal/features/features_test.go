package features

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugscope/cli/internal/sniff"
)

var shapeInputs = map[string]string{
	"empty":     "",
	"blank":     "\n\n   \n",
	"python":    "import os\n\ndef f(x=[]):\n    return x\n",
	"java":      "public class Main { public static void main(String[] a) { while(true) {} } }",
	"cpp":       "#include <iostream>\nint x;\nnew int[5];\n",
	"malformed": "def (:\n\t]]]{{{ \x00",
	"unicode":   "# héllo\nπ = 3.14\n",
}

func TestAll_anyInput_has15Values(t *testing.T) {
	t.Parallel()
	for name, code := range shapeInputs {
		v := All(code)
		assert.Equal(t, HandcraftedDims, v.Len(), name)
		assert.Equal(t, ShapeImproved, v.Shape, name)
		assert.NoError(t, v.CheckDim(15), name)
	}
}

func TestBaseline_anyInput_has10Values(t *testing.T) {
	t.Parallel()
	for name, code := range shapeInputs {
		v := Baseline(code)
		assert.Equal(t, BaselineDims, v.Len(), name)
		assert.Equal(t, ShapeBaseline, v.Shape, name)
	}
}

func TestBaseline_isPrefixOfAll(t *testing.T) {
	t.Parallel()
	code := shapeInputs["python"]
	if diff := cmp.Diff(All(code).Values[:BaselineDims], Baseline(code).Values); diff != "" {
		t.Errorf("baseline differs from All prefix (-all +baseline):\n%s", diff)
	}
}

func TestSyntax_countsEachGroup(t *testing.T) {
	t.Parallel()
	code := "for i in range(3):\n    if i: x = 1\n"
	assert.Equal(t, [GroupDims]float64{1, 1, 1, 0, 1}, Syntax(code))

	code = "try:\n    f()\nexcept E:\n    pass\nfinally:\n    g()\n"
	got := Syntax(code)
	assert.Equal(t, float64(3), got[3], "try/except/finally")
	assert.Equal(t, float64(2), got[2], "calls")
}

func TestSyntax_unicodeIdentifiers_counted(t *testing.T) {
	t.Parallel()
	got := Syntax("# héllo\nπ = 3.14\nrésumé(π)\n")
	assert.Equal(t, float64(1), got[2], "calls")
	assert.Equal(t, float64(1), got[4], "assignments")
}

func TestSemantic_validPython_countsNodes(t *testing.T) {
	t.Parallel()
	code := "import os\nfrom sys import path\n\ndef f(x):\n    return x\n\nclass A:\n    def g(self):\n        return 1\n"
	got := Semantic(code)
	assert.Equal(t, [GroupDims]float64{2, 1, 2, 2, 2}, got)
}

func TestSemantic_meanFunctionLength(t *testing.T) {
	t.Parallel()
	code := "def a():\n    x = 1\n    y = 2\n    return x + y\n\ndef b():\n    pass\n"
	got := Semantic(code)
	assert.Equal(t, float64(2), got[0])
	assert.InDelta(t, 3.0, got[2], 1e-9, "mean of 4 and 2 lines")
}

func TestSemantic_parseFailure_returnsZeros(t *testing.T) {
	t.Parallel()
	for _, code := range []string{
		"",
		"def (:",
		"public class Main { public static void main(String[] a) { while(true) {} } }",
		"#include <iostream>\nint main() { int *p = new int; return 0; }",
	} {
		assert.Equal(t, [GroupDims]float64{}, Semantic(code), "%q", code)
	}
}

func TestComplexity_metrics(t *testing.T) {
	t.Parallel()
	code := "# c\ndef f(a):\n    if a and b:\n        return 1\n\n"
	got := Complexity(code)
	require.Len(t, got, GroupDims)
	assert.Equal(t, float64(3), got[0], "cyclomatic")
	assert.Equal(t, float64(3), got[1], "loc")
	assert.Equal(t, float64(2), got[2], "nesting")
	assert.InDelta(t, 1.0/3.0, got[3], 1e-9, "comment ratio")
	assert.Equal(t, float64(2), got[4], "blank")
}

func TestComplexity_onlyComments_ratioUsesOne(t *testing.T) {
	t.Parallel()
	got := Complexity("# a\n# b")
	assert.Equal(t, float64(0), got[1])
	assert.Equal(t, float64(2), got[3])
}

func TestCyclomatic_countsExcept(t *testing.T) {
	t.Parallel()
	assert.Equal(t, float64(1), Cyclomatic(""))
	assert.Equal(t, float64(5), Cyclomatic("try:\n  pass\nexcept A:\n  pass\nexcept B:\n  pass\nwhile x or y: pass"))
}

func TestImproved_policies(t *testing.T) {
	t.Parallel()
	code := shapeInputs["python"]
	emb := make([]float64, 768)
	for i := range emb {
		emb[i] = float64(i) / 1000
	}

	v, err := Improved(code, emb, PolicyNone)
	require.NoError(t, err)
	assert.Equal(t, 15, v.Len())

	v, err = Improved(code, emb, PolicyAppend)
	require.NoError(t, err)
	assert.Equal(t, 30, v.Len())
	assert.Equal(t, PolicyAppend.Dims(len(emb)), v.Len())
	assert.Equal(t, All(code).Values, v.Values[:15])
	assert.Equal(t, emb[:15], v.Values[15:])

	v, err = Improved(code, emb[:4], PolicyAppend)
	require.NoError(t, err)
	assert.Equal(t, 19, v.Len())

	v, err = Improved(code, emb, PolicyReplace)
	require.NoError(t, err)
	assert.Equal(t, emb[:15], v.Values)
}

func TestImproved_replaceShortEmbedding_dimensionMismatch(t *testing.T) {
	t.Parallel()
	_, err := Improved("x = 1", []float64{1, 2, 3}, PolicyReplace)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestReduce_truncatesAndCopies(t *testing.T) {
	t.Parallel()
	short := []float64{1, 2}
	got := Reduce(short)
	assert.Equal(t, short, got)
	got[0] = 9
	assert.Equal(t, float64(1), short[0], "Reduce must not alias its input")
	assert.Len(t, Reduce(make([]float64, 100)), ReducedEmbeddingDims)
	assert.Empty(t, Reduce(nil))
}

func TestVector_CheckDim_mismatch(t *testing.T) {
	t.Parallel()
	err := Baseline("x = 1").CheckDim(15)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "baseline vector has 10 values, model expects 15")
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]EmbeddingPolicy{"": PolicyNone, "none": PolicyNone, "append": PolicyAppend, "replace": PolicyReplace} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("merge")
	assert.Error(t, err)
}

func TestLanguageSpecific(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []float64{1, 0, 0, 0, 0}, LanguageSpecific("def f():\n    pass", sniff.Python))
	assert.Equal(t, []float64{1, 1, 1, 0, 1}, LanguageSpecific("public class A { public void run() { try { if (x) {} } catch (E e) {} } }", sniff.Java))
	assert.Equal(t, []float64{1, 0, 1, 1, 1}, LanguageSpecific("void f() { int *p = new int; delete p; }", sniff.Cpp))
	assert.Nil(t, LanguageSpecific("anything", sniff.Unknown))
}
