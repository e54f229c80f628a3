package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/a-h/templ"

	"github.com/conneroisu/folio/internal/locale"
	"github.com/conneroisu/folio/internal/middleware"
)

// pages maps each known page path to the message id of its title.
var pages = map[string]string{
	"/":      "HomeTitle",
	"/about": "AboutTitle",
	"/blog":  "BlogTitle",
}

// navOrder is the order of the main navigation.
var navOrder = []struct{ path, id string }{
	{"/", "NavHome"},
	{"/about", "NavAbout"},
	{"/blog", "NavBlog"},
}

// LocaleInfo is one entry of the /api/locales response.
type LocaleInfo struct {
	Code      locale.Code      `json:"code"`
	Direction locale.Direction `json:"direction"`
	Default   bool             `json:"default"`
	Name      string           `json:"name"`
}

// handleLocales lists the configured locales.
func (s *Server) handleLocales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	locales := s.cfg.Locales()
	out := make([]LocaleInfo, 0, len(locales.Codes()))
	for _, code := range locales.Codes() {
		out = append(out, LocaleInfo{
			Code:      code,
			Direction: locales.DirectionOf(code),
			Default:   code == locales.Default(),
			Name:      code.NativeName(),
		})
	}

	s.writeJSON(w, r, http.StatusOK, out)
}

// handlePage renders every page route in the locale chosen by the locale
// middleware.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	locales := s.cfg.Locales()
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		info = middleware.Info{Code: locales.Default(), Direction: locales.DirectionOf(locales.Default())}
	}

	// Switcher hrefs reuse rest, so it stays escaped.
	rest, _, _ := locales.StripLocale(r.URL.EscapedPath())
	titleID, known := pages[rest]
	status := http.StatusOK
	if !known {
		titleID = "NotFoundTitle"
		status = http.StatusNotFound
	}

	page := s.buildPage(info, rest, r.URL.RawQuery, titleID)
	templ.Handler(Layout(page), templ.WithStatus(status)).ServeHTTP(w, r)
}

func (s *Server) buildPage(info middleware.Info, rest, rawQuery, titleID string) Page {
	locales := s.cfg.Locales()
	code := info.Code

	page := Page{
		Lang:          code,
		Dir:           info.Direction,
		SiteName:      s.catalog.Localize(code, "SiteName", nil),
		SkipToContent: s.catalog.Localize(code, "SkipToContent", nil),
		SwitchLabel:   s.catalog.Localize(code, "SwitchLanguage", nil),
		Title: s.catalog.Localize(code, "PageTitle", map[string]interface{}{
			"Page": s.catalog.Localize(code, titleID, nil),
		}),
		Heading: s.catalog.Localize(code, "PageHeading", map[string]interface{}{
			"Path": displayPath(rest),
		}),
	}

	for _, item := range navOrder {
		page.Nav = append(page.Nav, Link{
			Href:    locales.LocalizedPath(code, item.path),
			Label:   s.catalog.Localize(code, item.id, nil),
			Current: item.path == rest,
		})
	}

	// Switcher links always carry the locale prefix: an explicit prefix is
	// authoritative, so choosing the default locale overrides a stored
	// preference before the canonical redirect drops the prefix.
	query := locale.ParseQuery(rawQuery)
	for _, c := range locales.Codes() {
		page.Switcher = append(page.Switcher, Link{
			Href:    locale.BuildURL(locale.PrefixPath(c, rest), query, ""),
			Label:   c.NativeName(),
			Lang:    c,
			Current: c == code,
		})
	}

	return page
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode JSON response", "path", r.URL.Path)
	}
}

// displayPath decodes an escaped path for headings. Undecodable input is
// shown as is.
func displayPath(escaped string) string {
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return escaped
	}

	return decoded
}
