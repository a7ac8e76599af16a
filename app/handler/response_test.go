package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"track-forge/app/model"
	"track-forge/app/service"
)

func TestStatusForErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.NewPipelineError(model.ErrValidation, "short"), http.StatusBadRequest},
		{model.NewPipelineError(model.ErrQuotaExceeded, "cap"), http.StatusTooManyRequests},
		{model.NewPipelineError(model.ErrUpstream, "bad key"), http.StatusBadGateway},
		{model.NewPipelineError(model.ErrSensitiveContent, "banned"), http.StatusBadGateway},
		{model.NewPipelineError(model.ErrGenerationFailed, "failed"), http.StatusBadGateway},
		{model.NewPipelineError(model.ErrGenerationTimeout, "slow"), http.StatusGatewayTimeout},
		{model.NewPipelineError(model.ErrMint, "reverted"), http.StatusBadGateway},
		{fmt.Errorf("load: %w", service.ErrTrackNotFound), http.StatusNotFound},
		{service.ErrRunNotFound, http.StatusNotFound},
		{service.ErrTrackAlreadyMinted, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
