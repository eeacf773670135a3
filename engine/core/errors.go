package core

import (
	"errors"
)

// Configuration errors. Reported by the graph builder before anything is
// handed to the executor.
var (
	ErrDuplicateName     = errors.New("duplicate resource name")
	ErrDuplicatePassName = errors.New("duplicate pass name")
	ErrUnknownHandle     = errors.New("unknown resource handle")
	ErrCyclicDependency  = errors.New("cyclic dependency between passes")
	ErrMissingAttachment = errors.New("graphics pass has no attachments")
	ErrInvalidAttachment = errors.New("invalid attachment configuration")
	ErrInvalidAccess     = errors.New("invalid access type")
	ErrDuplicateInput    = errors.New("resource registered twice for the same pass")
	ErrPresentNotLast    = errors.New("only the last pass can present")
	ErrInvalidSize       = errors.New("invalid graph size")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// Lifetime errors.
var (
	ErrStaleHandle = errors.New("stale handle")
)

// Backend errors. Devices wrap these around the API specific cause.
var (
	ErrDeviceAllocation = errors.New("device allocation failed")
	ErrDeviceLost       = errors.New("device lost")
	ErrFrameTimeout     = errors.New("timed out waiting for frame")
	ErrNotRecording     = errors.New("command recorder is not recording")
	ErrUnknown          = errors.New("unknown")
)

var ErrAssetNotFound = errors.New("asset not found")
