package chainclient

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWeiToGwei tests the weiToGwei function with various inputs
func TestWeiToGwei(t *testing.T) {
	tests := []struct {
		name     string
		wei      *big.Int
		expected float64
	}{
		{
			name:     "Nil gas price",
			wei:      nil,
			expected: 0,
		},
		{
			name:     "Zero gas price",
			wei:      big.NewInt(0),
			expected: 0,
		},
		{
			name:     "One gwei",
			wei:      big.NewInt(1000000000),
			expected: 1,
		},
		{
			name:     "Fractional gwei",
			wei:      big.NewInt(1500000000), // 1.5 gwei
			expected: 1.5,
		},
		{
			name:     "Very high gas price",
			wei:      big.NewInt(1000000000000), // 1000 gwei
			expected: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, weiToGwei(tt.wei), 0.0001)
		})
	}
}

type fakeGasSource struct {
	mu    sync.Mutex
	price *big.Int
	err   error
	calls int
}

func (f *fakeGasSource) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.price), nil
}

func (f *fakeGasSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestGasPriceRoutine_StartStop(t *testing.T) {
	source := &fakeGasSource{price: big.NewInt(25000000000)}
	routine := NewGasPriceRoutine(context.Background(), source, 11155111, 10*time.Millisecond, nil)

	assert.False(t, routine.IsRunning())
	assert.Nil(t, routine.LastGasPrice())

	routine.Start()
	routine.Start() // second start is a no-op
	assert.True(t, routine.IsRunning())

	require.Eventually(t, func() bool {
		return source.callCount() >= 2
	}, time.Second, 5*time.Millisecond)

	routine.Stop()
	assert.False(t, routine.IsRunning())
	assert.Equal(t, "25000000000", routine.LastGasPrice().String())

	// no more updates once stopped
	calls := source.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, source.callCount())

	routine.Stop() // stopping twice is safe
}

func TestGasPriceRoutine_ErrorKeepsLastPrice(t *testing.T) {
	source := &fakeGasSource{err: errors.New("rpc unavailable")}
	routine := NewGasPriceRoutine(context.Background(), source, 97, time.Hour, nil)

	routine.update()
	assert.Nil(t, routine.LastGasPrice())

	source.err = nil
	source.price = big.NewInt(3000000000)
	routine.update()
	assert.Equal(t, big.NewInt(3000000000), routine.LastGasPrice())
}

func TestGasPriceRoutine_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &fakeGasSource{price: big.NewInt(1)}
	routine := NewGasPriceRoutine(ctx, source, 97, time.Hour, nil)

	routine.Start()
	cancel()

	// Stop waits for the goroutine, which has already returned
	done := make(chan struct{})
	go func() {
		routine.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("routine did not stop after context cancellation")
	}
}
