package diag

import "fmt"

// Code is a compact numeric diagnostic identifier. The numbering follows the
// convention of the dialect's reference compiler: codes below 2000 are
// syntax-level (scanner and parser), codes from 2000 up are type-level.
// The split matters: transpile-only mode and ignore lists may suppress
// type-level codes, syntax-level codes are always fatal.
type Code uint16

const (
	UnknownCode Code = 0

	// Scanner
	LexUnterminatedString  Code = 1002
	LexUnterminatedComment Code = 1010
	LexUnexpectedChar      Code = 1127
	LexBadNumber           Code = 1124

	// Parser
	SynExpectedToken       Code = 1005
	SynExpressionExpected  Code = 1109
	SynDeclarationExpected Code = 1128
	SynIdentifierExpected  Code = 1003
	SynUnexpectedEOF       Code = 1160
	SynMissingInitializer  Code = 1155

	// Checker
	SemaCannotFindName     Code = 2304
	SemaPropertyMissing    Code = 2339
	SemaTypeNotAssignable  Code = 2322
	SemaArgNotAssignable   Code = 2345
	SemaNotCallable        Code = 2349
	SemaDuplicateDecl      Code = 2451
	SemaArityMismatch      Code = 2554
	SemaAssignToConst      Code = 2588
)

// Syntax reports whether the code belongs to the scanner/parser band that no
// mode is allowed to downgrade.
func (c Code) Syntax() bool {
	return c < 2000
}

// ID returns the stable external form used in reports and ignore lists.
func (c Code) ID() string {
	return fmt.Sprintf("TS%d", uint16(c))
}

func (c Code) String() string {
	return c.ID()
}
