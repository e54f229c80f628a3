package server

import (
	"github.com/conneroisu/folio/internal/locale"
)

//go:generate templ generate

// Link is an anchor rendered by the layout.
type Link struct {
	Href    string
	Label   string
	Lang    locale.Code
	Current bool
}

// Page is everything the layout needs to render one page.
type Page struct {
	Lang          locale.Code
	Dir           locale.Direction
	Title         string
	SiteName      string
	Heading       string
	SkipToContent string
	SwitchLabel   string
	Nav           []Link
	Switcher      []Link
}

func navHome(page Page) string {
	if len(page.Nav) > 0 {
		return page.Nav[0].Href
	}

	return "/"
}
