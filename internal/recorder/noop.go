package recorder

// NoopRecorder is a no-op implementation used when no backend is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Load() (*Document, error)      { return nil, ErrNoSnapshot }
func (n *NoopRecorder) Save(_ *Document) error        { return nil }
func (n *NoopRecorder) RecordPass(_ *PassEvent) error { return nil }
func (n *NoopRecorder) Close() error                  { return nil }
