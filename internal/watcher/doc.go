// Package watcher reports changes to a single study document on disk so
// `studyrag index --watch` can re-ingest it.
//
// fsnotify watches the file's directory, which also catches editors that
// save by writing a temporary file and renaming it over the original.
// Where fsnotify is unavailable the watcher polls the file instead.
// Bursts of events are debounced into one.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, "notes/biology.txt") }()
//
//	for event := range w.Events() {
//	    if event.Operation != watcher.OpDelete {
//	        // re-ingest event.Path
//	    }
//	}
package watcher
