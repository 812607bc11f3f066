// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/luxfi/version"

	"github.com/rpretzer/dawn/internal/identity"
)

// wirePath is the fixed HTTP path the node's WebSocket endpoint is served
// on; node addresses in the registry are host:port, this is appended when
// dialing.
const wirePath = "/dawn/v1"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Listener accepts inbound connections and completes the handshake before
// handing the caller an established Session.
type Listener struct {
	id         *identity.Identity
	appVersion *version.Application
	onSession  func(*Session)
}

// NewListener builds a Listener bound to a node identity. onSession is
// invoked once per successfully established inbound Session.
func NewListener(id *identity.Identity, appVersion *version.Application, onSession func(*Session)) *Listener {
	return &Listener{id: id, appVersion: appVersion, onSession: onSession}
}

// Handler returns an http.Handler suitable for mounting at wirePath on the
// node's listen address.
func (l *Listener) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sess, err := Accept(r.Context(), conn, l.id, l.appVersion, DefaultHandshakeTimeout)
		if err != nil {
			conn.Close()
			return
		}
		l.onSession(sess)
	})
}

// Dial connects to a remote node's address and completes the handshake as
// the initiating side.
func Dial(ctx context.Context, address string, id *identity.Identity, appVersion *version.Application) (*Session, error) {
	url := "ws://" + address + wirePath
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "transport: dial peer")
	}
	sess, err := Handshake(ctx, conn, id, appVersion, DefaultHandshakeTimeout)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return sess, nil
}
