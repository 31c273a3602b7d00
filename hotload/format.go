package hotload

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgError     = "error"
	msgWarning   = "warning"
	msgLine      = "%s:%s:%s: %s: %s"
	msgFailed    = "compilation failed: %d errors, %d warnings"
	msgSucceeded = "compilation succeeded with %d warnings"
)

var diagnosticCatalog = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, key, msg string) {
		if err := b.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}
	for _, key := range []string{msgError, msgWarning, msgLine, msgFailed, msgSucceeded} {
		set(language.English, key, key)
	}

	set(language.French, msgError, "erreur")
	set(language.French, msgWarning, "avertissement")
	set(language.French, msgLine, "%s:%s:%s : %s : %s")
	set(language.French, msgFailed, "échec de la compilation : %d erreurs, %d avertissements")
	set(language.French, msgSucceeded, "compilation réussie avec %d avertissements")

	set(language.German, msgError, "Fehler")
	set(language.German, msgWarning, "Warnung")
	set(language.German, msgFailed, "Kompilierung fehlgeschlagen: %d Fehler, %d Warnungen")
	set(language.German, msgSucceeded, "Kompilierung erfolgreich mit %d Warnungen")
	set(language.German, msgLine, msgLine)
	return b
}()

// DiagnosticPrinter formats diagnostics in one language.
type DiagnosticPrinter struct {
	tag     language.Tag
	printer *message.Printer
}

// NewDiagnosticPrinter picks the closest supported language to tag.
func NewDiagnosticPrinter(tag language.Tag) *DiagnosticPrinter {
	// The matcher falls back to the first tag, so English leads.
	supported := []language.Tag{language.English}
	for _, t := range diagnosticCatalog.Languages() {
		if t != language.English {
			supported = append(supported, t)
		}
	}
	_, idx, _ := language.NewMatcher(supported).Match(tag)
	chosen := supported[idx]
	return &DiagnosticPrinter{
		tag:     chosen,
		printer: message.NewPrinter(chosen, message.Catalog(diagnosticCatalog)),
	}
}

// Language returns the language the printer formats in.
func (p *DiagnosticPrinter) Language() language.Tag { return p.tag }

// Format renders one diagnostic as "unit:line:col: severity: message".
func (p *DiagnosticPrinter) Format(d Diagnostic) string {
	sev := msgError
	if d.Severity == SeverityWarning {
		sev = msgWarning
	}
	// Positions are not numbers to localize.
	return p.printer.Sprintf(msgLine, d.Unit, strconv.Itoa(d.Line), strconv.Itoa(d.Column), p.printer.Sprintf(sev), d.Message)
}

// Summary renders the error and warning counts of a round.
func (p *DiagnosticPrinter) Summary(diags []Diagnostic) string {
	errs := len(Errors(diags))
	warns := len(diags) - errs
	if errs > 0 {
		return p.printer.Sprintf(msgFailed, errs, warns)
	}
	return p.printer.Sprintf(msgSucceeded, warns)
}

// FormatAll renders every diagnostic on its own line followed by the
// summary.
func (p *DiagnosticPrinter) FormatAll(diags []Diagnostic) string {
	var b strings.Builder
	for _, d := range diags {
		b.WriteString(p.Format(d))
		b.WriteByte('\n')
	}
	b.WriteString(p.Summary(diags))
	return b.String()
}
