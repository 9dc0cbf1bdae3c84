package changelog

import (
	"strings"
	"text/template"

	"github.com/pasturelabs/roundup/pkg/errors"
)

// Format selects a markdown layout.
type Format string

const (
	// FormatGrouped renders one section per category, categories in
	// priority order.
	FormatGrouped Format = "grouped"

	// FormatFlat renders a single chronological list.
	FormatFlat Format = "flat"

	// FormatByLibrary renders one section per library.
	FormatByLibrary Format = "library"
)

// ParseFormat validates a format name.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatGrouped, FormatFlat, FormatByLibrary:
		return Format(value), nil
	case "":
		return FormatGrouped, nil
	}
	return "", errors.New(errors.ErrCodeInvalidConfig,
		"unknown changelog format %q (expected grouped, flat, or library)", value)
}

// Delimiters wrapping generated content so regeneration can replace it
// without touching surrounding prose.
const (
	DelimiterStart = "<!-- roundup:changelog -->"
	DelimiterEnd   = "<!-- /roundup:changelog -->"
)

const groupedTemplate = `{{range .Categories}}{{if .Items}}## {{.Name}}

{{range .Items}} * {{.Date.Format "2006-01-02"}} [{{.Commit.ShortHash}}] {{.ShortMessage}} ({{.Author}}){{if .SecurityID}} - {{.SecurityID}}{{end}}
{{end}}
{{end}}{{end}}`

const flatTemplate = `{{range .Items}} * {{.Date.Format "2006-01-02"}} [{{.Commit.ShortHash}}] {{.ShortMessage}} ({{.Author}})
{{end}}`

const libraryTemplate = `{{range .Libraries}}{{if .Items}}## {{.Name}}

{{range .Items}} * {{.Date.Format "2006-01-02"}} [{{.Commit.ShortHash}}] {{.ShortMessage}} ({{.Author}})
{{end}}
{{end}}{{end}}`

var templates = template.Must(template.New("grouped").Parse(groupedTemplate))

func init() {
	template.Must(templates.New("flat").Parse(flatTemplate))
	template.Must(templates.New("library").Parse(libraryTemplate))
}

// Markdown renders the changelog in the given format.
func (c *Changelog) Markdown(format Format) (string, error) {
	items, err := c.Items()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	switch format {
	case FormatFlat:
		err = templates.ExecuteTemplate(&b, "flat", struct{ Items []*Item }{items})
	case FormatByLibrary:
		type section struct {
			Name  string
			Items []*Item
		}
		var sections []section
		for _, lib := range c.root.All() {
			var libItems []*Item
			for _, item := range items {
				if item.Library() == lib.Name() {
					libItems = append(libItems, item)
				}
			}
			sections = append(sections, section{Name: lib.Name(), Items: libItems})
		}
		err = templates.ExecuteTemplate(&b, "library", struct{ Libraries []section }{sections})
	default:
		grouped := c.ByCategory(items)
		type section struct {
			Name  Category
			Items []*Item
		}
		var sections []section
		for _, category := range Categories {
			sections = append(sections, section{Name: category, Items: grouped[category]})
		}
		err = templates.ExecuteTemplate(&b, "grouped", struct{ Categories []section }{sections})
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeLogic, err, "render changelog")
	}
	return strings.TrimSpace(b.String()) + "\n", nil
}

// UpdateContent splices generated markdown into existing changelog content.
// Content between the delimiters is replaced; everything outside is kept
// byte for byte. When the delimiters are missing the generated block is
// appended with fresh delimiters, and appended reports that fallback so the
// caller can warn.
func UpdateContent(existing, generated string) (result string, appended bool) {
	block := DelimiterStart + "\n" + strings.TrimSpace(generated) + "\n" + DelimiterEnd

	start := strings.Index(existing, DelimiterStart)
	end := strings.Index(existing, DelimiterEnd)
	if start >= 0 && end > start {
		return existing[:start] + block + existing[end+len(DelimiterEnd):], false
	}
	if existing == "" {
		return block + "\n", true
	}
	return strings.TrimRight(existing, "\n") + "\n\n" + block + "\n", true
}
