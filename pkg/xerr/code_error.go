// Package xerr defines the error taxonomy shared across the RAG core.
// Components raise a *CodeError carrying a Kind; the HTTP layer is the
// only place that turns a Kind into a status code and a client-safe
// message.
package xerr

import "fmt"

// Kind classifies a CodeError into one of the taxonomy entries.
type Kind string

const (
	KindUnsupportedFormat      Kind = "unsupported_format"
	KindTooLarge               Kind = "too_large"
	KindQueryEmpty             Kind = "query_empty"
	KindAuthMissing            Kind = "auth_missing"
	KindAuthInvalid            Kind = "auth_invalid"
	KindParseFailed            Kind = "parse_failed"
	KindEmbeddingFailed        Kind = "embedding_failed"
	KindVectorStoreFailed      Kind = "vector_store_failed"
	KindLLMUnreachable         Kind = "llm_unreachable"
	KindLLMTimeout             Kind = "llm_timeout"
	KindEmbeddingModelMismatch Kind = "embedding_model_mismatch"
	KindInvalidConfig          Kind = "invalid_config"
	KindNotFound               Kind = "not_found"
	KindInternal               Kind = "internal"
)

// statusByKind maps each Kind to the HTTP status httpx.Fail answers
// with.
var statusByKind = map[Kind]int{
	KindUnsupportedFormat:      400,
	KindTooLarge:               413,
	KindQueryEmpty:             400,
	KindAuthMissing:            401,
	KindAuthInvalid:            401,
	KindParseFailed:            400,
	KindEmbeddingFailed:        500,
	KindVectorStoreFailed:      500,
	KindLLMUnreachable:         503,
	KindLLMTimeout:             504,
	KindEmbeddingModelMismatch: 500,
	KindInvalidConfig:          500,
	KindNotFound:               404,
	KindInternal:               500,
}

// CodeError is the error type every component surfaces across its public
// boundary. Cause is logged but never serialized into an HTTP response.
type CodeError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *CodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CodeError) Unwrap() error { return e.Cause }

// HTTPStatus returns the status code the HTTP layer should answer with.
func (e *CodeError) HTTPStatus() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return 500
}

// New builds a CodeError of the given kind with no wrapped cause.
func New(kind Kind, message string) *CodeError {
	return &CodeError{Kind: kind, Message: message}
}

// Wrap builds a CodeError of the given kind around an underlying cause.
func Wrap(kind Kind, message string, cause error) *CodeError {
	return &CodeError{Kind: kind, Message: message, Cause: cause}
}

// As reports whether err is a *CodeError and returns it.
func As(err error) (*CodeError, bool) {
	ce, ok := err.(*CodeError)
	return ce, ok
}

func UnsupportedFormat(message string) *CodeError { return New(KindUnsupportedFormat, message) }
func TooLarge(message string) *CodeError          { return New(KindTooLarge, message) }
func QueryEmpty(message string) *CodeError        { return New(KindQueryEmpty, message) }
func AuthMissing(message string) *CodeError       { return New(KindAuthMissing, message) }
func AuthInvalid(message string) *CodeError       { return New(KindAuthInvalid, message) }
func NotFound(message string) *CodeError          { return New(KindNotFound, message) }
func InvalidConfig(message string) *CodeError     { return New(KindInvalidConfig, message) }

func ParseFailed(message string, cause error) *CodeError {
	return Wrap(KindParseFailed, message, cause)
}
func EmbeddingFailed(message string, cause error) *CodeError {
	return Wrap(KindEmbeddingFailed, message, cause)
}
func VectorStoreFailed(message string, cause error) *CodeError {
	return Wrap(KindVectorStoreFailed, message, cause)
}
func LLMUnreachable(message string, cause error) *CodeError {
	return Wrap(KindLLMUnreachable, message, cause)
}
func LLMTimeout(message string, cause error) *CodeError {
	return Wrap(KindLLMTimeout, message, cause)
}
func EmbeddingModelMismatch(message string) *CodeError {
	return New(KindEmbeddingModelMismatch, message)
}
func Internal(message string, cause error) *CodeError {
	return Wrap(KindInternal, message, cause)
}
