// Package lease implements job leases on top of memcached lease get.
// A lease is a key vivified with the W flag, the winner writes its owner id
// with the configured TTL, every other worker sees the key taken.
package lease

import (
	"time"

	"github.com/QuangTung97/go-memcache/memcache"
	"github.com/smsflow/smsflow/config"
)

// vivifyTTL is the number of seconds the placeholder item lives before the
// winner sets the real TTL
const vivifyTTL = 5

// Client ...
type Client struct {
	client *memcache.Client
	owner  string
	prefix string
}

// New connects to memcached, owner identifies this worker in the lease value
func New(conf config.MemcacheConfig, owner string) *Client {
	retry := conf.RetryDuration
	if retry <= 0 {
		retry = 10 * time.Second
	}
	numConns := conf.NumConns
	if numConns <= 0 {
		numConns = 1
	}

	client, err := memcache.New(conf.Addr(), numConns, memcache.WithRetryDuration(retry))
	if err != nil {
		panic(err)
	}
	return &Client{
		client: client,
		owner:  owner,
		prefix: conf.KeyPrefix,
	}
}

// Close ...
func (c *Client) Close() error {
	return c.client.Close()
}

// TryAcquire returns true when this worker now holds the lease for ttl
func (c *Client) TryAcquire(name string, ttl time.Duration) (bool, error) {
	key := c.prefix + name

	pipe := c.client.Pipeline()
	defer pipe.Finish()

	resp, err := pipe.MGet(key, memcache.MGetOptions{
		N:   vivifyTTL,
		CAS: true,
	})()
	if err != nil {
		return false, err
	}
	if !granted(resp) {
		return false, nil
	}

	setResp, err := pipe.MSet(key, []byte(c.owner), memcache.MSetOptions{
		CAS: resp.CAS,
		TTL: ttlSeconds(ttl),
	})()
	if err != nil {
		return false, err
	}
	// EX means another worker replaced the placeholder first
	return setResp.Type == memcache.MSetResponseTypeHD, nil
}

// Release deletes the lease if this worker still holds it. A lease that expired
// and was taken by another worker is left alone.
func (c *Client) Release(name string) error {
	key := c.prefix + name

	pipe := c.client.Pipeline()
	defer pipe.Finish()

	resp, err := pipe.MGet(key, memcache.MGetOptions{})()
	if err != nil {
		return err
	}
	if !heldBy(resp, c.owner) {
		return nil
	}

	_, err = pipe.MDel(key, memcache.MDelOptions{})()
	return err
}

// granted is true only for the caller whose get vivified the missing key
func granted(resp memcache.MGetResponse) bool {
	if resp.Type != memcache.MGetResponseTypeVA || resp.Flags&memcache.MGetFlagZ != 0 {
		return false
	}
	return resp.Flags&memcache.MGetFlagW != 0
}

func heldBy(resp memcache.MGetResponse, owner string) bool {
	return resp.Type == memcache.MGetResponseTypeVA && string(resp.Data) == owner
}

func ttlSeconds(d time.Duration) uint32 {
	sec := uint32(d / time.Second)
	if sec == 0 {
		return 1
	}
	return sec
}
