package ls

import (
	"github.com/deploymenttheory/go-thinpool/pkg/app"
)

// Validate validates a listing request
func (r *Request) Validate() error {
	// Device path is required
	if r.DevicePath == "" {
		return app.NewError(app.ErrCodeInvalidInput, "metadata device path is required", nil)
	}

	if len(r.Fields) == 0 {
		return app.NewError(app.ErrCodeInvalidInput, "at least one field is required", nil)
	}
	for _, f := range r.Fields {
		if !f.Valid() {
			return app.NewError(app.ErrCodeInvalidInput, "unknown field "+string(f), nil)
		}
	}

	if r.CacheBlocks < 0 {
		return app.NewError(app.ErrCodeInvalidInput, "cache size must not be negative", nil)
	}

	return nil
}
