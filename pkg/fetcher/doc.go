// Package fetcher walks an account's comment history page by page.
//
// Pages are requested strictly in order from page 0 and only when the caller
// asks for more, so a consumer that stops early causes no further requests.
// Within each page the stop conditions are checked item by item:
//
//   - an empty page ends the stream
//   - an item older than the cutoff ends the stream, dropping the rest of the page
//   - reaching the limit truncates the page and ends the stream
//
// A page shorter than the page size is treated as the last one unless the
// fetcher is configured to require an explicit empty page.
//
// Example usage:
//
//	f := fetcher.New(client, log)
//	cursor := fetcher.NewCursor(f.Stream(fetcher.Options{
//	    Username: "someone",
//	    Cutoff:   newestCached + 1,
//	}))
//	for {
//	    c, err := cursor.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    handle(c)
//	}
package fetcher
