package camunda

import (
	"errors"
	"testing"

	apperrors "loan-advisor/internal/common/errors"

	"github.com/stretchr/testify/assert"
)

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorCode
	}{
		{"deadline", errors.New("rpc error: code = DeadlineExceeded desc = context deadline exceeded"), apperrors.ErrCodeTimeout},
		{"unavailable", errors.New("rpc error: code = Unavailable desc = connection refused"), apperrors.ErrCodeExternalService},
		{"other", errors.New("boom"), apperrors.ErrCodeExternalService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapZeebeError(tt.err, "topology")
			assert.Equal(t, tt.want, apperrors.CodeOf(err))
			assert.Contains(t, err.Error(), "topology")
		})
	}
}
