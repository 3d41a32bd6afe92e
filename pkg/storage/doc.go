// Package storage provides crash-safe file writes for cached histories and
// exported dumps.
//
// The Manager type scopes reads and writes to one directory. Writes go to a
// temporary sibling file which is synced and then renamed over the target, so
// an interrupted write leaves the previous contents readable.
//
// Usage:
//
//	manager, err := storage.NewManager(cacheDir)
//	if err != nil {
//	    return err
//	}
//
//	err = manager.WriteAtomic("4242.json", func(w io.Writer) error {
//	    return json.NewEncoder(w).Encode(comments)
//	})
package storage
