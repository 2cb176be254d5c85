// Package views is the default set of page templates. Each page is an
// html/template wrapped as a templ.Component so it plugs into
// spacetraveling.ViewFuncs next to hand-written templ components.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/richtext"
)

//go:embed templates/*.html
var files embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"formatDate": spacetraveling.FormatDate,
	"isoDate":    spacetraveling.ISODate,
	"richtext": func(b richtext.Blocks) template.HTML {
		// Output is escaped and URL-filtered by richtext.
		return template.HTML(richtext.AsHTML(b))
	},
	"jsonld": func(s string) template.JS {
		return template.JS(s)
	},
}).ParseFS(files, "templates/*.html"))

// errorPage is the data of the error templates.
type errorPage struct {
	Config spacetraveling.SiteConfig
	Meta   spacetraveling.PageMeta
}

func render(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

// Home renders the post listing.
func Home(v spacetraveling.HomeView) templ.Component {
	return render("home", v)
}

// LoadMore renders the fragment appended by the load-more trigger.
func LoadMore(v spacetraveling.LoadMoreView) templ.Component {
	return render("more", v)
}

// Post renders a full post.
func Post(v spacetraveling.PostView) templ.Component {
	return render("post", v)
}

// NotFound renders the 404 page.
func NotFound(cfg spacetraveling.SiteConfig) templ.Component {
	return render("not-found", errorPage{Config: cfg, Meta: spacetraveling.PageMeta{Title: "Página não encontrada | " + cfg.Name}})
}

// ServerError renders the 5xx page.
func ServerError(cfg spacetraveling.SiteConfig) templ.Component {
	return render("server-error", errorPage{Config: cfg, Meta: spacetraveling.PageMeta{Title: "Erro | " + cfg.Name}})
}

// Default returns the full view set.
func Default() spacetraveling.ViewFuncs {
	return spacetraveling.ViewFuncs{
		Home:        Home,
		LoadMore:    LoadMore,
		Post:        Post,
		NotFound:    NotFound,
		ServerError: ServerError,
	}
}
