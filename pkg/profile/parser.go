package profile

import (
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/pkg/errors"
)

// Parser reads profile files.
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser creates a new profile parser instance.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(ProfileLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build parser")
	}
	return &Parser{parser: parser}, nil
}

// Parse parses profile declarations from a reader. filename is only used in
// error positions.
func (p *Parser) Parse(filename string, r io.Reader) (*File, error) {
	f, err := p.parser.Parse(filename, r)
	if err != nil {
		return nil, errors.Wrap(err, "parse error")
	}
	return f, nil
}

// ParseString parses profile declarations from a string.
func (p *Parser) ParseString(input string) (*File, error) {
	f, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, errors.Wrap(err, "parse error")
	}
	return f, nil
}

// ParseFile parses a profile file from a path.
func (p *Parser) ParseFile(filename string) (*File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return p.Parse(filename, file)
}
