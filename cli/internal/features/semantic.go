package features

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

type semanticCounts struct {
	functions int
	classes   int
	funcLines int
	imports   int
	returns   int
}

// Semantic returns function definitions, class definitions, mean function
// length in lines, import statements and return statements from a Python
// syntax tree. Code that does not parse cleanly as Python yields five zeros.
func Semantic(code string) [GroupDims]float64 {
	var zero [GroupDims]float64
	if code == "" {
		return zero
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(code))
	if err != nil || tree == nil {
		return zero
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return zero
	}

	var c semanticCounts
	walk(root, &c)

	var meanLen float64
	if c.functions > 0 {
		meanLen = float64(c.funcLines) / float64(c.functions)
	}
	return [GroupDims]float64{
		float64(c.functions),
		float64(c.classes),
		meanLen,
		float64(c.imports),
		float64(c.returns),
	}
}

func walk(n *sitter.Node, c *semanticCounts) {
	switch n.Type() {
	case "function_definition":
		c.functions++
		c.funcLines += nodeLines(n)
	case "class_definition":
		c.classes++
	case "import_statement", "import_from_statement", "future_import_statement":
		c.imports++
	case "return_statement":
		c.returns++
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), c)
	}
}

// nodeLines counts the source lines a node spans. A node whose end point sits
// at column 0 ends on the previous line.
func nodeLines(n *sitter.Node) int {
	start, end := n.StartPoint(), n.EndPoint()
	lines := int(end.Row) - int(start.Row) + 1
	if end.Column == 0 && end.Row > start.Row {
		lines--
	}
	return lines
}
