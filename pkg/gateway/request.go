package gateway

// Features supported by the gateway.
const (
	FeatureDiagnosis = "diagnosis"
	FeatureChat      = "chat"
)

// Request describes one pending provider invocation.
type Request struct {
	// Feature names the consumer (diagnosis or chat).
	Feature string
	// Scope identifies the caller for per-scope quota, e.g. "user:42".
	// Empty means the call only counts against the global tiers.
	Scope string
	// Prompt is the full text sent to the provider.
	Prompt string
	// Query is the normalized-fingerprint input for cacheable requests.
	Query string
	// Context is an optional excerpt mixed into the fingerprint.
	Context string
	// Image is optional image evidence with its MIME type.
	Image     []byte
	ImageMIME string
	// Model overrides the gateway's configured model when non-empty.
	Model string
	// Cacheable marks requests safe to serve from the response cache.
	// Requests carrying per-entity context must never be cacheable.
	Cacheable bool
	// Structured requests are validated into a Diagnosis; others return raw text.
	Structured bool
}

// NewDiagnosisRequest builds a health-diagnosis request. Diagnosis prompts
// always carry per-entity context (the plant's record, optionally a photo),
// so they are never cacheable.
func NewDiagnosisRequest(scope, prompt string, image []byte, imageMIME string) Request {
	return Request{
		Feature:    FeatureDiagnosis,
		Scope:      scope,
		Prompt:     prompt,
		Image:      image,
		ImageMIME:  imageMIME,
		Structured: true,
	}
}

// NewChatRequest builds a generic chat request. Questions without entity
// context are cacheable: the same question yields the same answer for anyone.
func NewChatRequest(scope, question string) Request {
	return Request{
		Feature:   FeatureChat,
		Scope:     scope,
		Prompt:    question,
		Query:     question,
		Cacheable: true,
	}
}

// NewContextualChatRequest builds a chat request tied to one caller's record.
// Per-entity context would leak across requests if cached, so it is not.
func NewContextualChatRequest(scope, question, entityContext string) Request {
	return Request{
		Feature: FeatureChat,
		Scope:   scope,
		Prompt:  question + "\n\nContext:\n" + entityContext,
	}
}

// HasImage reports whether image evidence accompanies the request.
func (r Request) HasImage() bool { return len(r.Image) > 0 }
