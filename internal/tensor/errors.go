package tensor

import "fmt"

// ConstructionError reports that placeholder or missing metadata was used
// where a concrete tensor is required.
type ConstructionError struct {
	Reason string
}

func (e *ConstructionError) Error() string {
	return "tensor construction error: " + e.Reason
}

func constructionErrorf(format string, args ...any) error {
	return &ConstructionError{Reason: fmt.Sprintf(format, args...)}
}

// BufferMismatchError reports an attached buffer disagreeing with the
// tensor's declared metadata.
type BufferMismatchError struct {
	DeclaredShape Shape
	DeclaredDType DataType
	BufferShape   Shape
	BufferDType   DataType
	BufferBytes   int
}

func (e *BufferMismatchError) Error() string {
	return fmt.Sprintf(
		"buffer %s%v (%d bytes) does not match declared meta %s%v (%d bytes)",
		e.BufferDType, e.BufferShape, e.BufferBytes,
		e.DeclaredDType, e.DeclaredShape, e.DeclaredShape.ByteSize(e.DeclaredDType))
}

// AliasingError reports two storages claimed to be related that do not
// share the same underlying buffer.
type AliasingError struct {
	Reason string
}

func (e *AliasingError) Error() string {
	return "storage aliasing error: " + e.Reason
}

// UninitializedAutogradState reports an autograd accessor used on a tensor
// with no autograd record.
type UninitializedAutogradState struct{}

func (e *UninitializedAutogradState) Error() string {
	return "tensor has no autograd record"
}
