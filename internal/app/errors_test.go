package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/api/internal/engine"
	"taskflow/api/internal/hierarchy"
	"taskflow/api/internal/ordering"
	"taskflow/api/internal/store"
)

func TestAsDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"hierarchy not found", fmt.Errorf("%w: list lst_x", hierarchy.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"store not found", store.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{"inconsistent", hierarchy.ErrInconsistent, http.StatusConflict, CodeInconsistent},
		{"not a child", ordering.ErrNotChild, http.StatusUnprocessableEntity, CodeInvalidOperation},
		{"bad order", ordering.ErrInvalidOrder, http.StatusUnprocessableEntity, CodeInvalidOperation},
		{"same parent", engine.ErrSameParent, http.StatusUnprocessableEntity, CodeInvalidOperation},
		{"cross workspace", engine.ErrCrossWorkspace, http.StatusUnprocessableEntity, CodeCrossWorkspace},
		{"stale", ordering.ErrStale, http.StatusConflict, CodeConflict},
		{"serialization failure", fmt.Errorf("commit tx: %w", store.ErrConflict), http.StatusConflict, CodeConflict},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, CodeInternal},
		{"unknown", errors.New("pq: relation does not exist"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var de *DomainError
			require.ErrorAs(t, asDomainError(tt.err), &de)
			assert.Equal(t, tt.status, de.Status)
			assert.Equal(t, tt.code, de.Code)
		})
	}
}

func TestAsDomainErrorHidesStoreInternals(t *testing.T) {
	err := asDomainError(errors.New("sql error: near \"SELEC\": syntax error"))
	assert.NotContains(t, err.Error(), "SELEC")
}

func TestAsDomainErrorNil(t *testing.T) {
	assert.NoError(t, asDomainError(nil))
}

func TestAsDomainErrorKeepsDomainErrors(t *testing.T) {
	in := forbidden("nope")
	assert.Same(t, in, asDomainError(fmt.Errorf("wrapped: %w", in)))
}
