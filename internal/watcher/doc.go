// Package watcher reports changes to candidate images under a corpus root.
//
// fsnotify is used where available, with directory polling as a fallback
// for mounts that do not deliver events. Raw events are filtered through
// the same rules as a corpus walk and debounced into batches:
//
//	w, err := watcher.New(watcher.Options{Walk: walkOpts})
//	if err != nil {
//	    return err
//	}
//	go w.Run(ctx)
//
//	for batch := range w.Batches() {
//	    changed, removed := watcher.Split(batch)
//	    // re-index changed
//	}
package watcher
