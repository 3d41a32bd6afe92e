// Package commentsync keeps a local copy of an account's comment history in
// step with the API.
//
// A sync loads the cached history, asks the fetcher only for comments newer
// than the newest cached one, and serves the union newest first with ids
// de-duplicated. How and when the union is written back is chosen per
// request with a PersistMode:
//
//	r, err := engine.GetComments(ctx, commentsync.Request{
//		Username: "someone",
//		Limit:    20,
//		Persist:  commentsync.PersistBeforeReturn,
//	})
//	if err != nil {
//		return err
//	}
//	defer r.Close(ctx)
//	for {
//		c, err := r.Next(ctx)
//		if err == io.EOF {
//			break
//		}
//		...
//	}
//
// A sync that fails while fetching never writes. A failed write does not fail
// the sync; it is reported by Result.PersistErr.
package commentsync
