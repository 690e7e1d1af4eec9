package gateway

import "sync"

// InterestList is the subscription scope for presence broadcasts. The
// original product fanned presence changes out to every connected user;
// here interested parties register explicitly (watch-presence /
// unwatch-presence), keeping the broadcast proportional to the audience
// that actually cares.
type InterestList struct {
	mu       sync.RWMutex
	watchers map[string]map[string]struct{} // target user -> watcher user set
	watching map[string]map[string]struct{} // watcher user -> target set
}

func NewInterestList() *InterestList {
	return &InterestList{
		watchers: make(map[string]map[string]struct{}),
		watching: make(map[string]map[string]struct{}),
	}
}

// Watch registers watcher's interest in target's presence. Idempotent.
func (l *InterestList) Watch(watcher, target string) {
	if watcher == "" || target == "" || watcher == target {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.watchers[target]
	if w == nil {
		w = make(map[string]struct{})
		l.watchers[target] = w
	}
	w[watcher] = struct{}{}

	t := l.watching[watcher]
	if t == nil {
		t = make(map[string]struct{})
		l.watching[watcher] = t
	}
	t[target] = struct{}{}
}

// Unwatch removes the interest. No-op if absent.
func (l *InterestList) Unwatch(watcher, target string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(watcher, target)
}

// WatchersOf returns a snapshot of users interested in target.
func (l *InterestList) WatchersOf(target string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w := l.watchers[target]
	if len(w) == 0 {
		return nil
	}
	out := make([]string, 0, len(w))
	for u := range w {
		out = append(out, u)
	}
	return out
}

// DropWatcher clears everything watcher subscribed to. Called when the
// watcher's last connection is evicted so dead interest does not pile up.
func (l *InterestList) DropWatcher(watcher string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for target := range l.watching[watcher] {
		l.removeLocked(watcher, target)
	}
}

func (l *InterestList) removeLocked(watcher, target string) {
	if w := l.watchers[target]; w != nil {
		delete(w, watcher)
		if len(w) == 0 {
			delete(l.watchers, target)
		}
	}
	if t := l.watching[watcher]; t != nil {
		delete(t, target)
		if len(t) == 0 {
			delete(l.watching, watcher)
		}
	}
}
