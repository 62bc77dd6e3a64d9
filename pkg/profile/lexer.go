package profile

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// ProfileLexer tokenizes board profile files.
var ProfileLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `(?:#|//)[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	// Durations must come before plain integers.
	{Name: "Duration", Pattern: `\d+(?:\.\d+)?(?:ns|us|µs|ms|s)\b`},
	{Name: "Int", Pattern: `\d+`},

	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_-]*`},
	{Name: "Punct", Pattern: `[{};=]`},
})
