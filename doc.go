// Package pagestash provides a local, quota-bounded embedded datastore for
// crawled web content: page text, chunked vector embeddings, extracted
// images, serialized full-text index snapshots, user settings, and a
// persisted priority work queue.
//
// The store enforces a hard row budget through least-recently-used eviction:
// bulk chunk writes that exhaust the storage quota trigger one eviction pass
// and one retry before the error propagates. Cascade deletes (a page and its
// chunks and images), eviction passes, and the wipe operation each run inside
// a single transaction.
//
// # Quick Start
//
//	ctx := context.Background()
//	st, err := pagestash.Open("pagestash.db",
//	    pagestash.WithQuota(5000, 50000),
//	    pagestash.WithMirror(mirror.NewFileMirror("settings.mirror.json")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	err = st.UpsertPage(ctx, model.Page{ID: id, URL: "https://example.com/a"})
//	err = st.BulkPutChunks(ctx, chunks) // evicts and retries once on quota errors
//
// Index builders iterate content without materializing it:
//
//	for batch, err := range st.IteratePages(ctx, 500) {
//	    if err != nil {
//	        return err
//	    }
//	    index(batch)
//	}
//
// The store is a plain handle constructed by Open and threaded through to
// collaborators; there is no package-level singleton. Reset closes the
// handle and deletes the underlying database wholesale.
package pagestash
