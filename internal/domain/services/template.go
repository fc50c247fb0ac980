package services

import (
	"bytes"
	"strings"
	"text/template"

	"al.essio.dev/pkg/shellescape"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// templateFuncs are the helpers available to every crucible template
func templateFuncs() template.FuncMap {
	title := cases.Title(language.English)
	return template.FuncMap{
		"archname": ArchName,
		"title":    title.String,
		"lower":    strings.ToLower,
		"upper":    strings.ToUpper,
		"quote":    shellescape.Quote,
		"incpatch": IncPatch,
		"incminor": IncMinor,
		"incmajor": IncMajor,
		"trimv":    func(s string) string { return strings.TrimPrefix(s, "v") },
	}
}

func parseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(templateFuncs()).
		Parse(text)
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidTemplate, err.Error(), goerr.V("template", name))
	}
	return tmpl, nil
}

// CheckTemplate reports syntax errors and unknown functions without rendering
func CheckTemplate(name, text string) error {
	_, err := parseTemplate(name, text)
	return err
}

// RenderTemplate executes a named text/template against data.
// Missing keys are errors so typos in pipeline files surface early.
func RenderTemplate(name, text string, data any) (string, error) {
	tmpl, err := parseTemplate(name, text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render template", goerr.V("template", name))
	}
	return buf.String(), nil
}
