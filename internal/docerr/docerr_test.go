package docerr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/serroba/docstore/internal/docerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesCopies(t *testing.T) {
	t.Parallel()

	bad := docerr.ErrInvalidRev.WithReason("abc")

	assert.ErrorIs(t, bad, docerr.ErrInvalidRev)
	assert.NotErrorIs(t, bad, docerr.ErrConflict)
	assert.Equal(t, "abc", bad.Reason)
	assert.Equal(t, "bad_request: Invalid rev format (abc)", bad.Error())
	assert.Empty(t, docerr.ErrInvalidRev.Reason, "base value must not be mutated")
}

func TestError_IsThroughWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("commit foo: %w", docerr.ErrConflict)

	if !errors.Is(err, docerr.ErrConflict) {
		t.Errorf("expected wrapped conflict to match, got %v", err)
	}
}

func TestError_WithMessageChangesIdentity(t *testing.T) {
	t.Parallel()

	custom := docerr.ErrForbidden.WithMessage("Document must have a foo.")

	assert.NotErrorIs(t, custom, docerr.ErrForbidden)
	assert.Equal(t, http.StatusForbidden, custom.Status)
	assert.Equal(t, "forbidden: Document must have a foo.", custom.Error())
}

func TestFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		label  string
	}{
		{"store error", docerr.ErrReservedID, http.StatusBadRequest, "bad_request"},
		{"wrapped store error", fmt.Errorf("x: %w", docerr.ErrConflict), http.StatusConflict, "conflict"},
		{"plain error", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := docerr.From(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.label, got.Name)
		})
	}

	assert.Nil(t, docerr.From(nil))
}
