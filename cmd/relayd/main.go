// Command relayd runs a minimal store-and-forward relay: a bundle registry
// and per-user mailboxes. It holds everything in memory and authenticates
// nothing; it exists so clients can exchange envelopes during development.
package main

import (
	"flag"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"veilchat/internal/domain"
)

type relayStore struct {
	mu      sync.RWMutex
	bundles map[domain.Username]domain.PreKeyBundle
	queues  map[domain.Username][]domain.Envelope
}

func newRelayStore() *relayStore {
	return &relayStore{
		bundles: make(map[domain.Username]domain.PreKeyBundle),
		queues:  make(map[domain.Username][]domain.Envelope),
	}
}

func (s *relayStore) register(b domain.PreKeyBundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[b.Username] = b
}

// takeBundle returns the bundle with at most one one-time prekey, removing
// that prekey from the stored bundle so it is served exactly once.
func (s *relayStore) takeBundle(username domain.Username) (domain.PreKeyBundle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bundles[username]
	if !ok {
		return domain.PreKeyBundle{}, false
	}
	out := b
	out.OneTimePreKeys = nil
	if len(b.OneTimePreKeys) > 0 {
		out.OneTimePreKeys = []domain.OneTimePreKeyPublic{b.OneTimePreKeys[0]}
		b.OneTimePreKeys = b.OneTimePreKeys[1:]
		s.bundles[username] = b
	}
	return out, true
}

func (s *relayStore) enqueue(env domain.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[env.To] = append(s.queues[env.To], env)
}

func (s *relayStore) peek(username domain.Username, limit int) []domain.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.queues[username]
	if limit > 0 && limit < len(q) {
		q = q[:limit]
	}
	out := make([]domain.Envelope, len(q))
	copy(out, q)
	return out
}

func (s *relayStore) ack(username domain.Username, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[username]
	if count > len(q) {
		count = len(q)
	}
	s.queues[username] = q[count:]
}

func newRouter(store *relayStore) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	v1 := r.Group("/v1")
	v1.POST("/bundles", func(c *gin.Context) {
		var b domain.PreKeyBundle
		if err := c.ShouldBindJSON(&b); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if b.Username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
			return
		}
		store.register(b)
		c.Status(http.StatusNoContent)
	})

	v1.GET("/bundles/:username", func(c *gin.Context) {
		b, ok := store.takeBundle(domain.Username(c.Param("username")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return
		}
		c.JSON(http.StatusOK, b)
	})

	v1.POST("/messages/:username", func(c *gin.Context) {
		var env domain.Envelope
		if err := c.ShouldBindJSON(&env); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		env.To = domain.Username(c.Param("username"))
		store.enqueue(env)
		c.Status(http.StatusNoContent)
	})

	v1.GET("/messages/:username", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
		envs := store.peek(domain.Username(c.Param("username")), limit)
		c.JSON(http.StatusOK, envs)
	})

	v1.POST("/messages/:username/ack", func(c *gin.Context) {
		var in struct {
			Count int `json:"count"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		store.ack(domain.Username(c.Param("username")), in.Count)
		c.Status(http.StatusNoContent)
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return r
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	gin.SetMode(gin.ReleaseMode)
	r := newRouter(newRelayStore())
	log.Printf("relay listening on %s", *addr)
	log.Fatal(r.Run(*addr))
}
