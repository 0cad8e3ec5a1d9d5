package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteBrowserLoginGuide explains how to make browser cookie import work
func WriteBrowserLoginGuide(w io.Writer, browsers []string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "USING BROWSER COOKIES")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "The backend reads Instagram cookies from: %s (in that order).\n", strings.Join(browsers, ", "))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Open https://www.instagram.com in one of those browsers and log in.")
	fmt.Fprintln(w, "2. Complete any verification Instagram asks for (challenge or checkpoint).")
	fmt.Fprintln(w, "3. Make sure you can see your feed, then retry with --browser.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Chromium browsers may lock their cookie database while running;")
	fmt.Fprintln(w, "    close the browser if import keeps failing.")
	fmt.Fprintln(w, "  - On macOS you may be asked to allow keychain access for the browser's")
	fmt.Fprintln(w, "    Safe Storage key.")
	fmt.Fprintln(w, "  - Imported cookies give full access to the account. They are stored")
	fmt.Fprintln(w, "    encrypted and never leave this machine.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
