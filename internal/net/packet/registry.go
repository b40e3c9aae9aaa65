package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// HandlerFunc intercepts one decoded payload travelling to or from playerID.
type HandlerFunc func(playerID string, p Payload)

type route struct {
	dir  Direction
	kind Kind
}

// Registry maps (direction, kind) to interceptors. Interceptors for the same
// route run in registration order. Game loop only.
type Registry struct {
	handlers map[route][]HandlerFunc
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[route][]HandlerFunc),
		log:      log,
	}
}

// Register adds an interceptor for payloads of kind travelling in dir.
func (reg *Registry) Register(dir Direction, kind Kind, fn HandlerFunc) {
	k := route{dir: dir, kind: kind}
	reg.handlers[k] = append(reg.handlers[k], fn)
}

// Len returns the number of registered interceptors.
func (reg *Registry) Len() int {
	n := 0
	for _, hs := range reg.handlers {
		n += len(hs)
	}
	return n
}

// Dispatch runs every interceptor registered for the payload's route.
// A nil payload or a route with no interceptors is a no-op. A panicking
// interceptor is recovered and reported; later interceptors still run.
func (reg *Registry) Dispatch(dir Direction, playerID string, p Payload) error {
	if p == nil {
		return nil
	}
	k := route{dir: dir, kind: p.Kind()}
	handlers, ok := reg.handlers[k]
	if !ok {
		reg.log.Debug("無攔截器", zap.Stringer("dir", dir), zap.String("kind", string(k.kind)))
		return nil
	}

	var first error
	for _, fn := range handlers {
		if err := reg.safeCall(fn, playerID, p, k); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// safeCall executes an interceptor with panic recovery so a single bad
// payload cannot crash the game loop.
func (reg *Registry) safeCall(fn HandlerFunc, playerID string, p Payload, k route) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("攔截器 panic 已恢復",
				zap.Stringer("dir", k.dir),
				zap.String("kind", string(k.kind)),
				zap.String("player", playerID),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("interceptor panic for %s %s: %v", k.dir, k.kind, rec)
		}
	}()
	fn(playerID, p)
	return nil
}
