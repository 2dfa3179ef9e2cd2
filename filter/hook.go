package filter

// Hook names an extension point the session invokes around its terminal
// actions. The set is closed; the core never invokes anything else.
type Hook string

const (
	HookNew          Hook = "new"
	HookBeforeAccept Hook = "before_accept"
	HookAfterAccept  Hook = "after_accept"
	HookIgnore       Hook = "ignore"
	HookReject       Hook = "reject"
	HookPipe         Hook = "pipe"
)

// HookFunc receives the session at an extension point. Return values are
// deliberately absent: hooks act through side effects, which may include
// calling back into the session.
type HookFunc func(*Session)

// Registry holds ordered callable lists per hook. Registration order is
// invocation order.
type Registry struct {
	hooks map[Hook][]HookFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[Hook][]HookFunc)}
}

// Register appends fn to the list for h.
func (r *Registry) Register(h Hook, fn HookFunc) {
	r.hooks[h] = append(r.hooks[h], fn)
}

// Invoke calls every callable registered for h, in registration order,
// synchronously. Panics from a hook are not caught; a filter that fails
// mid-hook falls back on the session's Close finalizer.
func (r *Registry) Invoke(h Hook, s *Session) {
	for _, fn := range r.hooks[h] {
		fn(s)
	}
}
