package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/spotsync/internal/shared"
)

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo(t *testing.T) {
	transient := errors.New("connection reset")

	tc := []struct {
		name         string
		failures     int
		err          error
		retries      int
		wantAttempts int
		wantErr      error
	}{
		{name: "first attempt succeeds", wantAttempts: 1},
		{name: "succeeds after transient errors", failures: 2, err: transient, retries: 3, wantAttempts: 3},
		{name: "gives up after max retries", failures: 10, err: transient, retries: 2, wantAttempts: 3, wantErr: transient},
		{
			name:         "unavailable is final",
			failures:     10,
			err:          fmt.Errorf("%w: 404", shared.ErrTrackUnavailable),
			retries:      3,
			wantAttempts: 1,
			wantErr:      shared.ErrTrackUnavailable,
		},
		{name: "auth failure is final", failures: 10, err: shared.ErrAuthFailed, retries: 3, wantAttempts: 1, wantErr: shared.ErrAuthFailed},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), fastConfig(tt.retries), nil, func(ctx context.Context) error {
				attempts++
				if attempts <= tt.failures {
					return tt.err
				}
				return nil
			})

			if attempts != tt.wantAttempts {
				t.Errorf("Do() made %d attempts, want %d", attempts, tt.wantAttempts)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Do() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Do() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDoExhaustedReturnsError(t *testing.T) {
	err := Do(context.Background(), fastConfig(1), nil, func(ctx context.Context) error {
		return errors.New("boom")
	})

	var retryErr *Error
	if !errors.As(err, &retryErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if retryErr.Retries != 1 {
		t.Errorf("Retries = %d, want 1", retryErr.Retries)
	}
}

func TestDoContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, InitialBackoff: time.Second, MaxBackoff: time.Second, Multiplier: 1}

	attempts := 0
	err := Do(ctx, cfg, nil, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestJitterBounds(t *testing.T) {
	d := 100 * time.Millisecond
	for range 100 {
		j := jitter(d, 0.2)
		if j < -20*time.Millisecond || j > 20*time.Millisecond {
			t.Fatalf("jitter %s outside +/-20ms", j)
		}
	}
	if jitter(d, 0) != 0 {
		t.Error("expected zero jitter for zero fraction")
	}
}
