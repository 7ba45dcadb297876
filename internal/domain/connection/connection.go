package connection

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrSelfConnection = errors.New("a profile cannot connect to itself")

// Edge is an undirected connection stored with the smaller id in A.
type Edge struct {
	A           uuid.UUID  `json:"profile_a"`
	B           uuid.UUID  `json:"profile_b"`
	ConnectedOn *time.Time `json:"connected_on,omitempty"`
}

// NewEdge orders x and y so that (x,y) and (y,x) produce the same Edge.
// Byte order matches Postgres uuid comparison.
func NewEdge(x, y uuid.UUID, connectedOn *time.Time) (Edge, error) {
	switch c := bytes.Compare(x[:], y[:]); {
	case c == 0:
		return Edge{}, ErrSelfConnection
	case c > 0:
		x, y = y, x
	}
	return Edge{A: x, B: y, ConnectedOn: connectedOn}, nil
}

// Other returns the endpoint that is not id.
func (e Edge) Other(id uuid.UUID) uuid.UUID {
	if e.A == id {
		return e.B
	}
	return e.A
}

type Repository interface {
	Exists(ctx context.Context, e Edge) (bool, error)
	// Insert does nothing when the edge already exists.
	Insert(ctx context.Context, e Edge) (bool, error)
	// ListByProfile returns every edge of profileID when limit <= 0.
	ListByProfile(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]Edge, error)
	CountByProfile(ctx context.Context, profileID uuid.UUID) (int, error)
}
