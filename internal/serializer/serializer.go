// Package serializer turns JavaScript function source into scripts that can
// be loaded inside an isolated context without access to the creator.
//
// Calls between option functions are rewritten lexically: a call to another
// option name becomes a call through the shared options object. The rewrite
// does not parse the source, so a matching call inside a string literal or a
// comment is rewritten as well.
package serializer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/jsworker/internal/protocol"
)

var ErrEmptySource = errors.New("function source is empty")

// SyntaxError reports option or main source that does not compile.
type SyntaxError struct {
	Name string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("compile %s: %v", e.Name, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

var identifier = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

// IsIdentifier reports whether name is a plain JavaScript identifier.
func IsIdentifier(name string) bool {
	return identifier.MatchString(name)
}

// Rewrite replaces every call to a name in ctx with a call through options,
// leaving function declarations of that name intact.
func Rewrite(src string, ctx []string) string {
	for _, name := range ctx {
		if !IsIdentifier(name) {
			continue
		}
		src = rewriteCalls(src, name)
		src = restoreDeclaration(src, name)
	}
	return src
}

func rewriteCalls(src, name string) string {
	call := regexp.MustCompile(regexp.QuoteMeta(name) + `\s*\(`)

	var b strings.Builder
	last := 0
	for _, loc := range call.FindAllStringIndex(src, -1) {
		if loc[0] > 0 && continuesName(src[loc[0]-1]) {
			continue
		}
		b.WriteString(src[last:loc[0]])
		b.WriteString("options.")
		last = loc[0]
	}
	b.WriteString(src[last:])
	return b.String()
}

func restoreDeclaration(src, name string) string {
	decl := regexp.MustCompile(`function(\s*\*?\s*)options\.(` + regexp.QuoteMeta(name) + `\s*\()`)
	return decl.ReplaceAllString(src, "function${1}${2}")
}

// continuesName reports whether c can precede a call that must not be
// rewritten: part of a longer identifier or a member access.
func continuesName(c byte) bool {
	return c == '_' || c == '$' || c == '.' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// OptionScript wraps the rewritten source of option name into a loadable
// script. Evaluating the script yields a function of one argument, the
// options object, whose only effect is options[name] = <function>.
func OptionScript(name, src string, ctx []string) (string, error) {
	body := strings.TrimSpace(src)
	if body == "" {
		return "", &SyntaxError{Name: "option " + name, Err: ErrEmptySource}
	}

	script := fmt.Sprintf("(function (options) {\noptions[%s] = (%s\n);\n})",
		protocol.Quote(name), Rewrite(body, ctx))

	if _, err := goja.Compile(name, script, false); err != nil {
		return "", &SyntaxError{Name: "option " + name, Err: err}
	}
	return script, nil
}

// CheckFunction verifies that src compiles as a single expression. Whether
// it is callable is checked when the context boots.
func CheckFunction(src string) error {
	body := strings.TrimSpace(src)
	if body == "" {
		return &SyntaxError{Name: "worker main", Err: ErrEmptySource}
	}
	if _, err := goja.Compile("main", "("+body+"\n)", false); err != nil {
		return &SyntaxError{Name: "worker main", Err: err}
	}
	return nil
}
