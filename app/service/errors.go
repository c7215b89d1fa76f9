package service

import "errors"

var (
	ErrInvalidRequest           = errors.New("invalid request")
	ErrMemberNotFound           = errors.New("member not found")
	ErrMemberAlreadyExists      = errors.New("member already exists")
	ErrMemberHasOutstandingDues = errors.New("member has outstanding dues")
	ErrDuesNotFound             = errors.New("dues not found")
	ErrDuesAlreadyExists        = errors.New("dues already exist for member and period")
	ErrDuesNotPayable           = errors.New("dues are not outstanding")
	ErrReceiptNumberTaken       = errors.New("receipt number already assigned")
	ErrConcurrentUpdate         = errors.New("dues kept changing concurrently")
	ErrProviderUnsupported      = errors.New("provider is not supported")

	ErrInvalidNotification = errors.New("invalid gateway notification")
	ErrSignatureRejected   = errors.New("gateway notification signature rejected")
	ErrEventIgnored        = errors.New("gateway event ignored")
	ErrInvalidReference    = errors.New("invalid external reference")
)
