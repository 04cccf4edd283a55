package services

import "errors"

var (
	ErrInvalidStatus          = errors.New("invalid kyc status")
	ErrInvalidDocumentStatus  = errors.New("invalid document status")
	ErrDocTypeRequired        = errors.New("select a document type before uploading")
	ErrUnsupportedDocType     = errors.New("unsupported document type")
	ErrUnsupportedContentType = errors.New("unsupported file type, expected PDF, PNG or JPG")
	ErrDocumentTooLarge       = errors.New("document exceeds the 5 MiB limit")
	ErrEmptyDocument          = errors.New("document is empty")
)
