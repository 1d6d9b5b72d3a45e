package server

import (
	"errors"
	"strings"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
)

// diagnostic is a compile error located in the submitted text. Line and
// column are zero-based.
type diagnostic struct {
	Code    string
	Message string
	Line    int
	Column  int
	Length  int
}

// diagnosticsOf converts the outcome of a compile into diagnostics.
func diagnosticsOf(err error) []diagnostic {
	if err == nil {
		return nil
	}
	var list compiler.ErrorList
	if !errors.As(err, &list) {
		return []diagnostic{{Code: compiler.ErrInternal.String(), Message: err.Error()}}
	}
	out := make([]diagnostic, 0, len(list))
	for _, e := range list {
		out = append(out, diagnostic{
			Code:    e.Code.String(),
			Message: e.Message,
			Line:    e.Token.DocumentLine(),
			Column:  e.Token.ColumnIndex,
			Length:  len(e.Token.Text),
		})
	}
	return out
}

// procedureMembers returns the procedure members of text keyed by
// lowercase name. Overloads share a key and keep declaration order.
func procedureMembers(text string) map[string][]*compiler.SourceMember {
	out := make(map[string][]*compiler.SourceMember)
	for _, m := range compiler.LoadSourceProgram(text).Members {
		if m.MemberType != compiler.MemberProcedure || m.Identifier == "?" {
			continue
		}
		key := strings.ToLower(m.Identifier)
		out[key] = append(out[key], m)
	}
	return out
}
