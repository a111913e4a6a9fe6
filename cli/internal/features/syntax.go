package features

import "regexp"

// word matches one identifier character. RE2's \w is ASCII-only; identifiers
// such as π must count too. Keyword boundaries (\b) stay ASCII, which only
// differs when a keyword touches a non-ASCII letter.
const word = `[\p{L}\p{N}_]`

var (
	reLoop       = regexp.MustCompile(`\b(for|while)\b`)
	reCondition  = regexp.MustCompile(`\b(if|elif|else)\b`)
	reCall       = regexp.MustCompile(word + `+\s*\(`)
	reTryExcept  = regexp.MustCompile(`\b(try|except|finally)\b`)
	reAssignment = regexp.MustCompile(word + `+\s*=`)
)

func count(re *regexp.Regexp, code string) float64 {
	return float64(len(re.FindAllStringIndex(code, -1)))
}

// Syntax returns loop, conditional, call, try/except/finally and assignment counts.
func Syntax(code string) [GroupDims]float64 {
	return [GroupDims]float64{
		count(reLoop, code),
		count(reCondition, code),
		count(reCall, code),
		count(reTryExcept, code),
		count(reAssignment, code),
	}
}
