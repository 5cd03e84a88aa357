// Package cause explains Pawn compiler diagnostics.
//
// The catalogue is an ordered list of (trigger, explanation) pairs. Lookup is
// first-match in declaration order, so the order below is significant and some
// compiler codes intentionally appear more than once.
package cause

// Kind classifies a catalogue entry by compiler message family
type Kind string

const (
	KindSyntax       Kind = "syntax error"
	KindSemantic     Kind = "semantic error"
	KindWarning      Kind = "warning"
	KindFatal        Kind = "fatal error"
	KindPreprocessor Kind = "preprocessor error"
)

// Entry is one catalogue row
type Entry struct {
	Code        string
	Kind        Kind
	Trigger     string
	Explanation string
	// HelpDoc marks entries answered with the on-disk help document
	// instead of an inline explanation.
	HelpDoc bool
}

// Catalogue is the ordered set of entries used for lookups
type Catalogue []Entry

// Default returns the built-in catalogue
func Default() Catalogue {
	return defaultCatalogue
}

var defaultCatalogue = Catalogue{
	{Code: "001", Kind: KindSyntax, Trigger: "expected token",
		Explanation: "a required token is missing: usually ';', ',', ')', ']' or '}'. Check the end of the statement and the nesting above it."},
	{Code: "002", Kind: KindSyntax, Trigger: "only a single statement",
		Explanation: "a case label or similar construct accepts one statement only. Wrap several statements in braces."},
	{Code: "003", Kind: KindSyntax, Trigger: "declaration of a local variable must appear in a compound block",
		Explanation: "a 'new' declaration sits directly under if/else/case without braces. Add a { } block around it."},
	{Code: "012", Kind: KindSyntax, Trigger: "invalid function call, not a valid address",
		Explanation: "the called name is not a function. Check for a variable shadowing the function or a missing forward."},
	{Code: "014", Kind: KindSyntax, Trigger: "invalid statement; not in switch",
		Explanation: "'case' or 'default' used outside of a switch body."},
	{Code: "015", Kind: KindSemantic, Trigger: "default case must be the last case",
		Explanation: "Pawn requires 'default' to be the final branch of a switch."},
	{Code: "016", Kind: KindSemantic, Trigger: "multiple defaults in switch",
		Explanation: "a switch has more than one 'default' branch. Keep exactly one."},
	{Code: "019", Kind: KindSemantic, Trigger: "not a label",
		Explanation: "goto targets a name that is not declared as a label in this function."},
	{Code: "020", Kind: KindSyntax, Trigger: "invalid symbol name",
		Explanation: "symbol names must start with a letter, '_' or '@' and contain only letters, digits, '_' and '@'."},
	{Code: "036", Kind: KindSyntax, Trigger: "empty statement",
		Explanation: "a stray ';' forms an empty statement, often right after if(...) or while(...)."},
	{Code: "037", Kind: KindSyntax, Trigger: "missing semicolon",
		Explanation: "the previous statement is not terminated. Add ';' or compile without the -;+ option."},
	{Code: "030", Kind: KindSyntax, Trigger: "unexpected end of file",
		Explanation: "the file ended inside a block, string or comment. Look for an unclosed '{', '\"' or '/*'."},
	{Code: "027", Kind: KindSyntax, Trigger: "illegal character",
		Explanation: "the source contains a byte the lexer does not accept. Check for smart quotes or a non-UTF-8 paste."},
	{Code: "026", Kind: KindSyntax, Trigger: "missing closing parenthesis",
		Explanation: "an expression or call opens more '(' than it closes."},
	{Code: "028", Kind: KindSyntax, Trigger: "missing closing bracket",
		Explanation: "an array index or declaration opens '[' without the matching ']'."},
	{Code: "054", Kind: KindSyntax, Trigger: "missing closing brace",
		Explanation: "a block opened with '{' is never closed. The real cause is usually far above the reported line."},
	{Code: "004", Kind: KindSemantic, Trigger: "is not implemented",
		Explanation: "a forward declaration has no body. Implement the function or remove the forward."},
	{Code: "005", Kind: KindSemantic, Trigger: "function may not have arguments",
		Explanation: "main() and some special callbacks cannot take parameters."},
	{Code: "006", Kind: KindSemantic, Trigger: "must be assigned to an array",
		Explanation: "a string or array literal is assigned to a scalar variable. Declare the target with [size]."},
	{Code: "007", Kind: KindSemantic, Trigger: "operator cannot be redefined",
		Explanation: "this operator cannot be overloaded for the given tag combination."},
	{Code: "008", Kind: KindSemantic, Trigger: "must be a constant expression; assumed zero",
		Explanation: "array sizes, case labels and enum values need compile-time constants, not variables or calls."},
	{Code: "009", Kind: KindSemantic, Trigger: "invalid array size",
		Explanation: "the array size is zero, negative or not a constant."},
	{Code: "017", Kind: KindSemantic, Trigger: "undefined symbol",
		Explanation: "the name is not declared. Check spelling, scope and that the include providing it is on the include path."},
	{Code: "018", Kind: KindSemantic, Trigger: "initialization data exceeds declared size",
		Explanation: "the initializer has more elements or characters than the declared array size."},
	{Code: "022", Kind: KindSemantic, Trigger: "must be lvalue",
		Explanation: "the left side of an assignment is not assignable (a constant, a call result or an expression)."},
	{Code: "023", Kind: KindSemantic, Trigger: "array assignment must be simple assignment",
		Explanation: "arrays only support plain '=' assignment, not '+=' and friends."},
	{Code: "024", Kind: KindSemantic, Trigger: "break or continue is out of context",
		Explanation: "break/continue used outside of a loop (a switch case does not count)."},
	{Code: "025", Kind: KindSemantic, Trigger: "function heading differs from prototype",
		Explanation: "the definition does not match its forward/native declaration: parameter count, tags or defaults differ."},
	{Code: "027", Kind: KindSemantic, Trigger: "invalid character constant",
		Explanation: "unknown escape sequence or multi-character constant inside single quotes."},
	{Code: "029", Kind: KindSemantic, Trigger: "invalid expression, assumed zero",
		Explanation: "the expression could not be parsed, usually because of a preceding syntax error."},
	{Code: "032", Kind: KindSemantic, Trigger: "array index out of bounds",
		Explanation: "a constant index is outside the declared array size. Valid indices are 0 .. size-1."},
	{Code: "045", Kind: KindSemantic, Trigger: "too many function arguments",
		Explanation: "more arguments were passed than the function declares, or the 64 argument limit was hit."},
	{Code: "203", Kind: KindWarning, Trigger: "symbol is never used",
		Explanation: "a variable or function is declared but never referenced. Remove it or mark it #pragma unused."},
	{Code: "204", Kind: KindWarning, Trigger: "symbol is assigned a value that is never used",
		Explanation: "the stored value is overwritten or dropped before being read."},
	{Code: "205", Kind: KindWarning, Trigger: "redundant code: constant expression is zero",
		Explanation: "the condition is always false so the guarded code never runs."},
	{Code: "209", Kind: KindSemantic, Trigger: "should return a value",
		Explanation: "a code path ends without 'return value;' in a function that returns a value elsewhere."},
	{Code: "211", Kind: KindWarning, Trigger: "possibly unintended assignment",
		Explanation: "'=' used inside a condition. Use '==' to compare, or wrap the assignment in extra parentheses."},
	{Code: "010", Kind: KindSyntax, Trigger: "invalid function or declaration",
		Explanation: "the parser could not read a declaration here. Check the line above for a missing ';' or '}'."},
	{Code: "213", Kind: KindSemantic, Trigger: "tag mismatch",
		Explanation: "operands carry different tags, e.g. Float: mixed with an untagged int. Convert with float() or floatround()."},
	{Code: "215", Kind: KindWarning, Trigger: "expression has no effect",
		Explanation: "the statement computes a value and discards it. A '==' written where '=' was meant is the usual cause."},
	{Code: "217", Kind: KindWarning, Trigger: "loose indentation",
		Explanation: "tabs and spaces are mixed, or a line is indented differently than its block. Normalize whitespace."},
	{Code: "234", Kind: KindWarning, Trigger: "Function is deprecated",
		Explanation: "the called native or stock is marked deprecated. Switch to the replacement named in the include."},
	{Code: "013", Kind: KindSemantic, Trigger: "no entry point",
		Explanation: "the script has no main() or public entry point. Gamemodes need main()."},
	{Code: "021", Kind: KindSemantic, Trigger: "symbol already defined",
		Explanation: "the name is declared twice in the same scope, often from an include being pulled in twice."},
	{Code: "028", Kind: KindSemantic, Trigger: "invalid subscript",
		Explanation: "indexing applied to a value that is not an array, or too many dimensions used."},
	{Code: "033", Kind: KindSemantic, Trigger: "array must be indexed",
		Explanation: "a whole array is used where a single cell is expected. Add an [index]."},
	{Code: "034", Kind: KindSemantic, Trigger: "argument does not have a default value",
		Explanation: "a named or skipped argument refers to a parameter that has no default."},
	{Code: "035", Kind: KindSemantic, Trigger: "argument type mismatch",
		Explanation: "the passed argument does not match the parameter: array vs scalar, wrong dimensions or wrong tag."},
	{Code: "037", Kind: KindSemantic, Trigger: "invalid string",
		Explanation: "the string literal is unterminated or contains an invalid escape sequence."},
	{Code: "039", Kind: KindSemantic, Trigger: "constant symbol has no size",
		Explanation: "sizeof was applied to a constant or enum value, which has no storage."},
	{Code: "040", Kind: KindSemantic, Trigger: "duplicate case label",
		Explanation: "two case labels in the same switch have the same value."},
	{Code: "041", Kind: KindSemantic, Trigger: "invalid ellipsis",
		Explanation: "an initializer uses '...' without enough data to extend the array."},
	{Code: "042", Kind: KindSemantic, Trigger: "invalid combination of class specifiers",
		Explanation: "the storage class keywords cannot be combined, e.g. 'public static'."},
	{Code: "043", Kind: KindSemantic, Trigger: "character constant exceeds range",
		Explanation: "a character constant is outside the 0-255 range."},
	{Code: "044", Kind: KindSemantic, Trigger: "positional parameters must precede",
		Explanation: "positional arguments must come before any .name = value arguments."},
	{Code: "046", Kind: KindSemantic, Trigger: "unknown array size",
		Explanation: "the array has neither a size nor an initializer to infer one from."},
	{Code: "047", Kind: KindSemantic, Trigger: "array sizes do not match",
		Explanation: "array assignment requires both sides to have the same size."},
	{Code: "048", Kind: KindSemantic, Trigger: "array dimensions do not match",
		Explanation: "the arrays have a different number of dimensions or different inner sizes."},
	{Code: "049", Kind: KindSemantic, Trigger: "invalid line continuation",
		Explanation: "a trailing backslash is only valid inside #define lines and string literals."},
	{Code: "050", Kind: KindSemantic, Trigger: "invalid range",
		Explanation: "the range bounds are reversed or not constant."},
	{Code: "055", Kind: KindSemantic, Trigger: "start of function body without function header",
		Explanation: "a '{' appears where a function header was expected. Look for an extra brace or a missing header line."},
	{Code: "100", Kind: KindFatal, Trigger: "cannot read from file",
		Explanation: "the compiler could not open a source or include file: the file doesn't exist, insufficient permissions, or the include path is wrong.",
		HelpDoc: true},
	{Code: "101", Kind: KindFatal, Trigger: "cannot write to file",
		Explanation: "the output .amx could not be written: the directory is missing, read-only, or the file is locked by a running server."},
	{Code: "102", Kind: KindFatal, Trigger: "table overflow",
		Explanation: "an internal compiler table is full. Split the script or reduce very large macros and enums."},
	{Code: "103", Kind: KindFatal, Trigger: "insufficient memory",
		Explanation: "the compiler ran out of memory. Large arrays and deep macro expansion are the usual cause."},
	{Code: "104", Kind: KindFatal, Trigger: "invalid assembler instruction",
		Explanation: "a #emit line uses an unknown opcode or wrong operands."},
	{Code: "105", Kind: KindFatal, Trigger: "numeric overflow",
		Explanation: "a numeric literal does not fit in a 32-bit cell."},
	{Code: "107", Kind: KindFatal, Trigger: "too many error messages on one line",
		Explanation: "the compiler gave up on this line. Fix the first error reported for it."},
	{Code: "108", Kind: KindFatal, Trigger: "codepage mapping file not found",
		Explanation: "the file passed with -c could not be found next to the compiler."},
	{Code: "109", Kind: KindFatal, Trigger: "invalid path",
		Explanation: "an include or output path is malformed or points to a missing directory."},
	{Code: "110", Kind: KindFatal, Trigger: "assertion failed",
		Explanation: "a #assert condition evaluated to false at compile time."},
	{Code: "111", Kind: KindFatal, Trigger: "user error",
		Explanation: "the script hit an #error directive. Read the message that follows it."},
	{Code: "214", Kind: KindWarning, Trigger: "literal array/string passed to non-const parameter",
		Explanation: "a literal is passed to a parameter that is not declared const. Add const to the parameter."},
	{Code: "200", Kind: KindWarning, Trigger: "is truncated to",
		Explanation: "the symbol name exceeds the maximum length and was shortened. Two long names may now collide."},
	{Code: "201", Kind: KindWarning, Trigger: "redefinition of constant",
		Explanation: "a #define or const is defined again with a new value. Use #undef first if that is intended."},
	{Code: "202", Kind: KindWarning, Trigger: "number of arguments does not match",
		Explanation: "the call passes a different number of arguments than the declaration expects."},
	{Code: "206", Kind: KindWarning, Trigger: "redundant test: constant expression is non-zero",
		Explanation: "the condition is always true so the test does nothing."},
	{Code: "214", Kind: KindWarning, Trigger: "array argument was intended as const",
		Explanation: "the function does not modify this array parameter. Declare it const."},
	{Code: "060", Kind: KindPreprocessor, Trigger: "too many nested includes",
		Explanation: "includes are nested too deep. Add include guards and check for include loops."},
	{Code: "061", Kind: KindPreprocessor, Trigger: "recursive include",
		Explanation: "a file includes itself directly or through another include."},
	{Code: "062", Kind: KindPreprocessor, Trigger: "macro recursion too deep",
		Explanation: "a macro keeps expanding into itself. Check the replacement pattern."},
	{Code: "068", Kind: KindPreprocessor, Trigger: "division by zero",
		Explanation: "a constant expression divides by zero."},
	{Code: "069", Kind: KindPreprocessor, Trigger: "overflow in constant expression",
		Explanation: "a constant expression overflows a 32-bit cell."},
	{Code: "070", Kind: KindPreprocessor, Trigger: "undefined macro",
		Explanation: "#if tests a macro that is not defined. It is treated as 0."},
	{Code: "071", Kind: KindPreprocessor, Trigger: "missing preprocessor argument",
		Explanation: "the macro was invoked with fewer arguments than its pattern has."},
	{Code: "072", Kind: KindPreprocessor, Trigger: "too many macro arguments",
		Explanation: "the macro was invoked with more arguments than its pattern has."},
	{Code: "038", Kind: KindPreprocessor, Trigger: "extra characters on line",
		Explanation: "a preprocessor directive has trailing tokens. Remove them or turn them into a comment."},
}
