//go:build integration

package lease

import (
	"testing"
	"time"

	"github.com/smsflow/smsflow/config"
	"github.com/stretchr/testify/assert"
)

func newTestClient(owner string) *Client {
	return New(config.MemcacheConfig{
		Host:      "localhost",
		Port:      11211,
		NumConns:  1,
		KeyPrefix: "smsflow-test:lease:",
	}, owner)
}

func flushAll(c *Client) {
	p := c.client.Pipeline()
	defer p.Finish()
	err := p.FlushAll()()
	if err != nil {
		panic(err)
	}
}

func TestClient_TryAcquire__Granted_Then_Rejected(t *testing.T) {
	c1 := newTestClient("worker-1")
	defer func() { _ = c1.Close() }()
	c2 := newTestClient("worker-2")
	defer func() { _ = c2.Close() }()

	flushAll(c1)

	ok, err := c1.TryAcquire("process-queue", time.Minute)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)

	ok, err = c2.TryAcquire("process-queue", time.Minute)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)

	ok, err = c2.TryAcquire("reconcile", time.Minute)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)
}

func TestClient_Release(t *testing.T) {
	c1 := newTestClient("worker-1")
	defer func() { _ = c1.Close() }()
	c2 := newTestClient("worker-2")
	defer func() { _ = c2.Close() }()

	flushAll(c1)

	ok, err := c1.TryAcquire("process-queue", time.Minute)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)

	err = c1.Release("process-queue")
	assert.Equal(t, nil, err)

	ok, err = c2.TryAcquire("process-queue", time.Minute)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)
}

func TestClient_Release__Not_Owner_Keeps_Lease(t *testing.T) {
	c1 := newTestClient("worker-1")
	defer func() { _ = c1.Close() }()
	c2 := newTestClient("worker-2")
	defer func() { _ = c2.Close() }()

	flushAll(c1)

	ok, err := c2.TryAcquire("reconcile", time.Minute)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)

	// worker-1 overran its own lease and releases late
	err = c1.Release("reconcile")
	assert.Equal(t, nil, err)

	ok, err = c1.TryAcquire("reconcile", time.Minute)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)
}
