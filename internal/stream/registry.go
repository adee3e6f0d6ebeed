// Package stream keeps the live notification streams of this process and
// pushes events to them.
package stream

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Pusher delivers an event to a recipient's live stream. Send reports whether
// the event was handed to a transport; false is not an error.
type Pusher interface {
	Send(recipientID string, event any) bool
}

// Registry maps a recipient to their single live connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	log   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
		log:   log,
	}
}

// Register stores conn for recipientID. An earlier connection of the same
// recipient is replaced and closed, which ends its stream.
func (r *Registry) Register(recipientID string, conn *Conn) {
	r.mu.Lock()
	prev := r.conns[recipientID]
	r.conns[recipientID] = conn
	r.mu.Unlock()

	if prev != nil && prev != conn {
		prev.Close()
		r.log.Info("replaced notification stream",
			zap.String("recipient", recipientID),
			zap.String("old_conn", prev.ID()),
			zap.String("new_conn", conn.ID()))
		return
	}
	r.log.Debug("registered notification stream",
		zap.String("recipient", recipientID),
		zap.String("conn", conn.ID()))
}

// Unregister removes and closes the recipient's connection, if any.
func (r *Registry) Unregister(recipientID string) {
	r.mu.Lock()
	conn, ok := r.conns[recipientID]
	delete(r.conns, recipientID)
	r.mu.Unlock()

	if ok {
		conn.Close()
	}
}

// Release removes the entry only if it still holds conn. Stream handlers call
// it on teardown so that a replaced handler never evicts its successor.
func (r *Registry) Release(recipientID string, conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.conns[recipientID]; ok && cur == conn {
		delete(r.conns, recipientID)
		return true
	}
	return false
}

// Send queues event on the recipient's stream without blocking. It returns
// false when the recipient has no stream here or the stream cannot take the
// frame; a stream whose queue is full is closed and dropped. Nothing is
// retained for later.
func (r *Registry) Send(recipientID string, event any) bool {
	conn := r.lookup(recipientID)
	if conn == nil {
		return false
	}

	payload, err := json.Marshal(event)
	if err != nil {
		r.log.Error("encoding stream event", zap.String("recipient", recipientID), zap.Error(err))
		return false
	}
	return r.enqueue(recipientID, conn, payload)
}

// enqueue queues payload on conn, the recipient's stream as last read.
func (r *Registry) enqueue(recipientID string, conn *Conn, payload []byte) bool {
	err := conn.Enqueue(payload)
	if errors.Is(err, ErrConnClosed) {
		// A newer stream may have replaced conn in the meantime.
		if cur := r.lookup(recipientID); cur != nil && cur != conn {
			conn = cur
			err = conn.Enqueue(payload)
		}
	}

	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrConnClosed):
		r.Release(recipientID, conn)
		return false
	default:
		r.log.Warn("dropping slow notification stream",
			zap.String("recipient", recipientID),
			zap.String("conn", conn.ID()),
			zap.Error(err))
		conn.Close()
		r.Release(recipientID, conn)
		return false
	}
}

func (r *Registry) lookup(recipientID string) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[recipientID]
}

// Connected reports whether the recipient has a live stream here.
func (r *Registry) Connected(recipientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[recipientID]
	return ok
}

// Len returns the number of live streams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes and removes every stream. Used on shutdown so that open
// stream handlers return.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
