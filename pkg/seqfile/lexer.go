package seqfile

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// SeqLexer defines the lexical structure for sequence files: hash comments,
// hex byte literals and bare identifiers.
var SeqLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\n\r]+`},

	{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},

	{Name: "Punct", Pattern: `[{}\[\],]`},
})
