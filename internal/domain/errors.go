package domain

import "errors"

var (
	// ErrSchema signals batch input without the required columns. It is the
	// only error that aborts a whole batch.
	ErrSchema = errors.New("schema error")
	// ErrNotFound signals a missing template or attachment.
	ErrNotFound = errors.New("not found")
	// ErrConversion signals a failure of the document conversion engine.
	ErrConversion = errors.New("conversion error")
	// ErrDelivery signals a mail transport or authentication failure.
	ErrDelivery = errors.New("delivery error")
	// ErrInvalidRecipient signals a row that cannot be processed, such as a
	// blank name. It fails only that row.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrIO signals a filesystem failure creating directories or files.
	ErrIO = errors.New("io error")
)
