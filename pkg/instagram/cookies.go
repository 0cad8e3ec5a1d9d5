package instagram

import (
	"context"
	"net/http"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // register cookie store finders
)

// CookieDomain is the domain whose browser cookies are imported
const CookieDomain = "instagram.com"

// CookieSource reads a browser's Instagram cookies
type CookieSource interface {
	Cookies(ctx context.Context, browser string) ([]*http.Cookie, error)
}

// KookySource reads cookies from the local browser profiles
type KookySource struct{}

// Cookies returns the valid instagram.com cookies of every profile of the
// named browser. Profiles that fail to open are skipped.
func (KookySource) Cookies(ctx context.Context, browser string) ([]*http.Cookie, error) {
	var out []*http.Cookie
	for _, store := range kooky.FindAllCookieStores(ctx) {
		if !strings.EqualFold(store.Browser(), browser) {
			store.Close()
			continue
		}
		for cookie := range store.TraverseCookies(kooky.Valid, kooky.DomainHasSuffix(CookieDomain)).OnlyCookies() {
			hc := cookie.Cookie
			out = append(out, &hc)
		}
		store.Close()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// StaticCookies serves a fixed cookie set per browser
type StaticCookies map[string][]*http.Cookie

// Cookies returns copies of the cookies registered for browser
func (s StaticCookies) Cookies(_ context.Context, browser string) ([]*http.Cookie, error) {
	src := s[browser]
	out := make([]*http.Cookie, 0, len(src))
	for _, c := range src {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}
