package shutdown

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testComponent struct {
	name string
	err  error
	wait time.Duration

	mu    *sync.Mutex
	order *[]string
}

func (c *testComponent) Name() string { return c.name }

func (c *testComponent) Shutdown(ctx context.Context) error {
	if c.wait > 0 {
		select {
		case <-time.After(c.wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.mu != nil {
		c.mu.Lock()
		*c.order = append(*c.order, c.name)
		c.mu.Unlock()
	}
	return c.err
}

func TestShutdownRunsAllComponents(t *testing.T) {
	var mu sync.Mutex
	var order []string

	c := NewCoordinator(WithTimeout(time.Second))
	c.Register(&testComponent{name: "store", mu: &mu, order: &order})
	c.Register(&testComponent{name: "scheduler", mu: &mu, order: &order})
	c.Register(&testComponent{name: "server", mu: &mu, order: &order})

	c.Shutdown()
	c.Wait()

	assert.ElementsMatch(t, []string{"store", "scheduler", "server"}, order)
	assert.Equal(t, 0, c.ExitCode())
}

func TestShutdownIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	var order []string

	c := NewCoordinator(WithTimeout(time.Second))
	c.Register(&testComponent{name: "only", mu: &mu, order: &order})

	c.Shutdown()
	c.Shutdown()
	c.Wait()

	assert.Len(t, order, 1)
}

func TestShutdownTimeout(t *testing.T) {
	c := NewCoordinator(WithTimeout(50 * time.Millisecond))
	c.Register(&testComponent{name: "stuck", wait: 5 * time.Second})

	start := time.Now()
	c.Shutdown()
	c.Wait()

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, c.ExitCode())
}

func TestShutdownComponentErrorStillCompletes(t *testing.T) {
	c := NewCoordinator(WithTimeout(time.Second))
	c.Register(&testComponent{name: "flaky", err: errors.New("close failed")})

	c.Shutdown()
	c.Wait()

	assert.Equal(t, 0, c.ExitCode())
}

func TestWaitForSignal(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	var mu sync.Mutex
	var order []string

	c := NewCoordinator(WithTimeout(time.Second), WithSignalChannel(sigCh))
	c.Register(&testComponent{name: "server", mu: &mu, order: &order})

	go c.WaitForSignal()
	sigCh <- syscall.SIGTERM
	c.Wait()

	require.Len(t, order, 1)
	assert.Equal(t, 0, c.ExitCode())
}

func TestCloserComponent(t *testing.T) {
	closed := false
	comp := NewCloserComponent("store", closerFunc(func() error {
		closed = true
		return nil
	}))

	assert.Equal(t, "store", comp.Name())
	require.NoError(t, comp.Shutdown(context.Background()))
	assert.True(t, closed)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
