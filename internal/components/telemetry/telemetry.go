package telemetry

// API is what every component reports through, tests swap it for a Recorder.
type API interface {
	// ReportBroken reports a component that failed and needs an operator.
	//
	// `id` names the component, not the failing line: a failed http call while listing news
	// is `client.news-list` and the http error goes into params. Ids are lowercase, dots
	// separate a component from its part and dashes join words.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something odd that did not stop the work, like a skipped
	// attachment or a notification that could not be delivered.
	ReportWarning(id string, params ...any)

	// ReportInfo reports an event an operator wants in the log.
	ReportInfo(msg string, params ...any)

	// ReportDebug is dropped unless running verbose.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a gauge: the number of items of one kind seen at this moment.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id and message with a namespace before passing it on, scopes
// nest as "alice: informer: news.fetch".
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return s.namespace + ": " + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportInfo(msg string, params ...any) {
	s.inner.ReportInfo(s.scope(msg), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
