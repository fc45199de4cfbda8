package audit

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-cameras/internal/bridges/camera"
)

const recordTimeout = 5 * time.Second

// Logger is the subset of logging.Logger used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

// Recorder writes audit entries without failing the action being
// recorded: a storage error is logged and dropped.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder over repo. logger may be nil.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// RecordCommand implements camera.CommandRecorder.
func (r *Recorder) RecordCommand(ctx context.Context, deviceID, command, source string, err error) {
	r.Record(ctx, deviceID, command, source, nil, err)
}

// Record stores one action against deviceID (empty for bridge-wide
// actions such as a rescan). A non-nil err marks the entry failed and
// stores its command error code.
func (r *Recorder) Record(ctx context.Context, deviceID, action, source string, details map[string]any, err error) {
	entry := &AuditLog{
		Action:   action,
		DeviceID: deviceID,
		Source:   source,
		Outcome:  OutcomeOK,
		Details:  details,
	}
	if err != nil {
		entry.Outcome = OutcomeFailed
		entry.ErrorCode = camera.ErrorCode(err)
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		entry.Details["error"] = err.Error()
	}

	// The action already happened; record it even if the caller's
	// context is ending.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if createErr := r.repo.Create(writeCtx, entry); createErr != nil && r.logger != nil {
		r.logger.Warn("failed to record audit entry",
			"action", action,
			"device_id", deviceID,
			"error", createErr,
		)
	}
}

// List returns recorded entries.
func (r *Recorder) List(ctx context.Context, filter Filter) (*ListResult, error) {
	return r.repo.List(ctx, filter)
}
