// Package render turns a draft into the HTML document submitted to the blog.
// Rendering is pure: the same draft and image always produce the same bytes.
package render

import (
	"bytes"
	_ "embed"
	"hash/fnv"
	"html/template"
	"strings"

	"github.com/pkg/errors"

	"auto_blog_publisher/generator"
	"auto_blog_publisher/imagery"
)

//go:embed post.html.tmpl
var postTemplate string

const (
	textColor       = "#111827"
	headingColor    = "#000000"
	mutedColor      = "#4b5563"
	pageBackground  = "#ffffff"
	codeBackground  = "#f3f4f6"
	defaultPostName = "Untitled post"
)

// Theme is the accent palette of a post. Body text colours are fixed.
type Theme struct {
	Primary   string
	Secondary string
	Accent    string
}

var themes = []Theme{
	{Primary: "#2563eb", Secondary: "#1e40af", Accent: "#dc2626"},
	{Primary: "#059669", Secondary: "#047857", Accent: "#ea580c"},
	{Primary: "#7c3aed", Secondary: "#6d28d9", Accent: "#dc2626"},
	{Primary: "#b91c1c", Secondary: "#7f1d1d", Accent: "#2563eb"},
	{Primary: "#c2410c", Secondary: "#9a3412", Accent: "#047857"},
}

// Post is the rendered payload for the publisher.
type Post struct {
	Title  string
	HTML   string
	Labels []string
}

type Renderer struct {
	tmpl   *template.Template
	labels []string
}

// New parses the embedded layout. labels are used when a draft has no tags.
func New(labels []string) (*Renderer, error) {
	tmpl, err := template.New("post").Parse(postTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "parse post template")
	}
	return &Renderer{tmpl: tmpl, labels: labels}, nil
}

type imageView struct {
	URL            string
	Alt            string
	Attribution    string
	AttributionURL string
}

type postView struct {
	Title    string
	Subtitle string
	Summary  string
	Image    *imageView
	Body     template.HTML
	Tags     []string

	HeaderStyle   template.CSS
	TitleStyle    template.CSS
	SubtitleStyle template.CSS
	ArticleStyle  template.CSS
	FigureStyle   template.CSS
	ImageStyle    template.CSS
	CaptionStyle  template.CSS
	SummaryStyle  template.CSS
	TagStyle      template.CSS
	FooterStyle   template.CSS
	ScopedCSS     template.CSS
}

// Render composes the post. A nil image yields the text-only layout.
func (r *Renderer) Render(draft generator.Draft, image *imagery.Asset) (Post, error) {
	title := plainText(draft.Title)
	if title == "" {
		title = defaultPostName
	}
	theme := ThemeFor(title)

	body, err := sanitizeFragment(draft.BodyHTML, theme)
	if err != nil {
		return Post{}, errors.Wrap(err, "sanitize body")
	}

	view := postView{
		Title:    title,
		Subtitle: plainText(draft.Subtitle),
		Summary:  plainText(draft.Summary),
		Body:     template.HTML(body),
		Tags:     draft.Tags,
	}
	view.applyStyles(theme)

	if image != nil {
		if src, ok := safeURL(strings.TrimSpace(image.URL), "https", "http"); ok {
			alt := plainText(image.Alt)
			if alt == "" {
				alt = title
			}
			iv := &imageView{URL: src, Alt: alt, Attribution: plainText(image.Attribution)}
			if link, ok := safeURL(image.AttributionURL, "https", "http"); ok {
				iv.AttributionURL = link
			}
			view.Image = iv
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return Post{}, errors.Wrap(err, "execute post template")
	}

	labels := draft.Tags
	if len(labels) == 0 {
		labels = r.labels
	}
	return Post{
		Title:  title,
		HTML:   buf.String(),
		Labels: append([]string(nil), labels...),
	}, nil
}

// ThemeFor picks the accent palette from the title so that rendering stays
// deterministic while posts still vary.
func ThemeFor(title string) Theme {
	h := fnv.New32a()
	h.Write([]byte(title))
	return themes[int(h.Sum32()%uint32(len(themes)))]
}

func (v *postView) applyStyles(t Theme) {
	v.ArticleStyle = template.CSS("max-width:900px;margin:0 auto;padding:24px;line-height:1.8;" +
		"font-family:'Noto Sans KR','Helvetica Neue',Arial,sans-serif;" +
		"color:" + textColor + " !important;background-color:" + pageBackground + " !important;")
	v.HeaderStyle = template.CSS("background:linear-gradient(135deg," + t.Primary + " 0%," + t.Secondary + " 100%);" +
		"background-color:" + t.Secondary + " !important;padding:48px 32px;border-radius:16px;margin:0 0 32px 0;")
	v.TitleStyle = template.CSS("color:#ffffff !important;background-color:transparent !important;" +
		"font-size:38px !important;font-weight:900 !important;margin:0 0 12px 0 !important;line-height:1.3 !important;")
	v.SubtitleStyle = template.CSS("color:#ffffff !important;background-color:transparent !important;" +
		"font-size:20px !important;margin:0 !important;")
	v.FigureStyle = template.CSS("margin:32px 0 !important;text-align:center !important;")
	v.ImageStyle = template.CSS("display:block !important;width:100% !important;max-width:100% !important;" +
		"height:auto !important;margin:0 auto !important;border-radius:12px;")
	v.CaptionStyle = template.CSS("color:" + mutedColor + " !important;font-size:13px !important;margin-top:8px !important;")
	v.SummaryStyle = template.CSS("color:" + mutedColor + " !important;background-color:#f8fafc !important;" +
		"font-size:17px !important;padding:16px 20px !important;border-left:4px solid " + t.Primary + " !important;margin:0 0 28px 0 !important;")
	v.TagStyle = template.CSS("display:inline-block !important;color:" + t.Accent + " !important;background-color:#f8fafc !important;" +
		"border:1px solid " + t.Accent + " !important;padding:6px 14px !important;border-radius:16px !important;font-size:14px !important;margin:0 8px 8px 0 !important;")
	v.FooterStyle = template.CSS("margin-top:48px !important;padding-top:24px !important;border-top:2px solid #e5e7eb !important;")
	v.ScopedCSS = template.CSS(".auto-post p,.auto-post li,.auto-post td,.auto-post th{color:" + textColor + " !important;}" +
		".auto-post h2,.auto-post h3,.auto-post h4{color:" + headingColor + " !important;}" +
		".auto-post a{color:" + t.Primary + " !important;}" +
		".auto-post img{display:block !important;max-width:100% !important;height:auto !important;}")
}
