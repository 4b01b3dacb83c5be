// Package share renders archived narrations as self-contained HTML pages
// and publishes them.
package share

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"

	"github.com/dgnsrekt/handguide/internal/archive"
)

var ErrNothingToShare = errors.New("no narrations selected")

// MaxImageSize is the largest photo embedded in a page.
const MaxImageSize = 8 << 20

var markdown = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{.Language}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.6; color: #222; }
article { margin-bottom: 3rem; }
img { max-width: 100%; border-radius: 8px; }
blockquote { color: #666; border-left: 3px solid #ddd; margin: 0; padding-left: 1rem; }
footer { color: #999; font-size: 0.8rem; }
</style>
</head>
<body>
{{range .Entries}}<article id="{{.ID}}">
{{if .Image}}<img src="{{.Image}}" alt="{{.Title}}">
{{end}}{{.Body}}
</article>
{{end}}<footer>{{.Generated.Format "2006-01-02 15:04"}}</footer>
</body>
</html>
`))

type pageData struct {
	Title     string
	Language  string
	Generated time.Time
	Entries   []entry
}

type entry struct {
	ID    string
	Title string
	Image template.URL
	Body  template.HTML
}

// Markdown returns the transcript of r as markdown.
func Markdown(r *archive.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", escapeMarkdown(r.Title))
	if r.Kind == archive.KindQuestion && r.Prompt != "" && r.Prompt != r.Title {
		fmt.Fprintf(&b, "> %s\n\n", escapeMarkdown(r.Prompt))
	}
	b.WriteString(escapeMarkdown(r.Text()))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "*%s*\n", r.CreatedAt.Format("2006-01-02 15:04"))
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "[", `\[`, "]", `\]`, "<", `\<`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Snapshot renders records into one HTML page. Photos are embedded as data
// URIs when their files can still be read.
func Snapshot(records []*archive.Record, language string) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNothingToShare
	}

	data := pageData{
		Title:     records[0].Title,
		Language:  language,
		Generated: time.Now(),
	}
	if len(records) > 1 {
		data.Title = fmt.Sprintf("%s +%d", records[0].Title, len(records)-1)
	}

	for _, r := range records {
		var body bytes.Buffer
		if err := markdown.Convert([]byte(Markdown(r)), &body); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", r.ShortID(), err)
		}
		e := entry{
			ID:    r.ShortID(),
			Title: r.Title,
			Body:  template.HTML(body.String()),
		}
		if r.ImagePath != "" {
			uri, err := imageDataURI(r.ImagePath)
			if err != nil {
				log.Debug("Share: photo not embedded", "path", r.ImagePath, "error", err)
			} else {
				e.Image = uri
			}
		}
		data.Entries = append(data.Entries, e)
	}

	var out bytes.Buffer
	if err := page.Execute(&out, data); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func imageDataURI(path string) (template.URL, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > MaxImageSize {
		return "", fmt.Errorf("photo is %d bytes, limit %d", info.Size(), MaxImageSize)
	}
	img, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := mimetype.Detect(img).String()
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("not an image: %s", mime)
	}
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)), nil
}

// PageName returns the file name for a page of records.
func PageName(records []*archive.Record) string {
	if len(records) == 1 {
		return "handguide-" + records[0].ShortID() + ".html"
	}
	return "handguide-" + time.Now().Format("20060102-150405") + ".html"
}
