// Package imgur provides a client for the parts of the Imgur API v3 that deal
// with an account's comment history.
//
// This package includes:
//   - A Client that sends the Client-ID credential and decodes response envelopes
//   - Models for comments and accounts, with validation of required fields
//   - Helpers for building API paths and public permalinks
//   - Human-readable comment formatting used by the CLI
//
// Example usage:
//
//	client := imgur.NewClient(30*time.Second, log).WithCredential(clientID)
//
//	page, err := client.FetchCommentsPage(ctx, "someone", 0, 100)
//	if err != nil {
//	    if errors.Is(err, errors.ErrorTypeHTTPStatus) {
//	        // Handle non-200 responses
//	    }
//	}
//
//	for _, c := range page.Comments {
//	    fmt.Println(imgur.FormatHuman(c, time.Local))
//	}
package imgur
