package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowClientIDGuide writes step-by-step instructions for obtaining an Imgur
// Client-ID
func ShowClientIDGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w, "📚 IMGUR CLIENT-ID GUIDE")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Reading public comment history only needs an application Client-ID.")
	fmt.Fprintln(w, "No password or OAuth token is involved.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🌐 STEP 1: Sign in at https://imgur.com")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔧 STEP 2: Register an application")
	fmt.Fprintln(w, "   - Open https://api.imgur.com/oauth2/addclient")
	fmt.Fprintln(w, "   - Application name: anything, e.g. imgurcomments")
	fmt.Fprintln(w, "   - Authorization type: 'Anonymous usage without user authorization'")
	fmt.Fprintln(w, "   - Authorization callback URL: leave empty")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔑 STEP 3: Copy the Client ID (not the secret)")
	fmt.Fprintln(w, "   It is shown after submitting the form and under Settings → Applications.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💾 STEP 4: Store it")
	fmt.Fprintln(w, "   imgurcomments auth add")
	fmt.Fprintln(w, "   or export IMGURCOMMENTS_CLIENT_ID=<client id>")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💡 TIPS:")
	fmt.Fprintln(w, "   • Anonymous applications get about 12,500 requests a day")
	fmt.Fprintln(w, "   • Each sync of an unchanged account costs a single request")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)
}

// ShowQuickGuide writes a one-line reminder for experienced users
func ShowQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "\n🔑 Quick Guide: https://api.imgur.com/oauth2/addclient → anonymous usage → copy the Client ID")
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}
