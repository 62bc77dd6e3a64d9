package profile

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// File is a parsed profile file. It may hold several profiles.
type File struct {
	Profiles []*ProfileDecl `@@*`
}

// ProfileDecl is one profile block.
// Example: profile "mcf54415-rpi" { pin dsi = 13; retries = 16; }
type ProfileDecl struct {
	Pos lexer.Position

	Name    string   `"profile" @String "{"`
	Entries []*Entry `@@* "}"`
}

// Entry is a single statement inside a profile block.
type Entry struct {
	Pos lexer.Position

	Pin        *PinEntry      `  "pin" @@`
	Timing     *DurationEntry `| "timing" @@`
	Reset      *DurationEntry `| "reset" @@`
	Breakpoint *DurationEntry `| "breakpoint" @@`
	Setting    *Setting       `| @@`
}

// PinEntry binds a BDM line to a pin number.
// Example: pin dsclk = 19;
type PinEntry struct {
	Line   string `@Ident "="`
	Number int    `@Int ";"`
}

// DurationEntry sets one of a group of time constants.
// Example: timing setup = 500ns;
type DurationEntry struct {
	Name  string `@Ident "="`
	Value string `@Duration ";"`
}

// Setting is a plain key = value statement.
// Example: adapter = ftdi;
type Setting struct {
	Key   string `@Ident "="`
	Value *Value `@@ ";"`
}

// Value is the right hand side of a Setting.
type Value struct {
	String *string `  @String`
	Int    *int    `| @Int`
	Ident  *string `| @Ident`
}

func (v *Value) text() string {
	switch {
	case v.String != nil:
		return *v.String
	case v.Ident != nil:
		return *v.Ident
	}
	return ""
}
