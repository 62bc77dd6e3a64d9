package console

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

// lineLexer splits a console line into bare words and quoted strings.
var lineLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s\t\r\n]+`},
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Word", Pattern: `[^\s"#]+`},
})

// Line is one parsed console command.
// Example: dumpfile 0x40000000 0x40100000 "os image.bin" srec
type Line struct {
	Command string   `@Word`
	Args    []string `@( Word | String )*`
}

var lineParser = participle.MustBuild[Line](
	participle.Lexer(lineLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
)

// ParseLine parses input. Blank lines and comments yield nil.
func ParseLine(input string) (*Line, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}
	line, err := lineParser.ParseString("", input)
	if err != nil {
		return nil, errors.Wrap(err, "parse error")
	}
	line.Command = strings.ToLower(line.Command)
	return line, nil
}
