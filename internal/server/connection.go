package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/internal/transport"
	"github.com/xurwy/tgserver/mtproto"
	"github.com/xurwy/tgserver/mtproto/crypto"
)

const (
	handshakeTimeout = 15 * time.Second
	idleTimeout      = 10 * time.Minute
	ackFlushInterval = 5 * time.Second
)

// Connection owns one transport and the layer stack for it: the send
// helper, the DH layer while unhandshaked, and the RPC layer once an
// auth key is bound. Teardown releases RPC first, then DH, then the
// helper.
type Connection struct {
	api       *ServerApi
	transport transport.Transport
	helper    *mtproto.SendHelper
	dh        *ServerDhLayer
	rpc       *RpcLayer
	logger    *zap.Logger

	done chan struct{}
}

func NewConnection(api *ServerApi, t transport.Transport) *Connection {
	c := &Connection{
		api:       api,
		transport: t,
		helper:    mtproto.NewSendHelper(crypto.DirectionServerToClient),
		logger:    logutil.L("remote.connection"),
		done:      make(chan struct{}),
	}
	c.dh = NewServerDhLayer(api, c.helper, c)
	c.rpc = NewRpcLayer(api, c.helper, c)
	return c
}

func (c *Connection) RemoteAddr() string {
	return c.transport.RemoteAddr()
}

func (c *Connection) WritePacket(p []byte) error {
	return c.transport.WritePacket(p)
}

// Run reads packets until the peer goes away or a fatal protocol error
// occurs. The transport is released on every exit path.
func (c *Connection) Run() {
	metricConnections.Inc()
	defer c.teardown()

	go c.ackLoop()

	handshakeDeadline := time.Now().Add(handshakeTimeout)
	for {
		if c.helper.HasAuthKey() {
			_ = c.transport.SetReadDeadline(time.Now().Add(idleTimeout))
		} else {
			// The whole handshake must finish inside its deadline.
			_ = c.transport.SetReadDeadline(handshakeDeadline)
		}
		packet, err := c.transport.ReadPacket()
		if err != nil {
			c.logger.Debug("read ended", zap.String("remote", c.RemoteAddr()), zap.Error(err))
			return
		}
		keyId, err := mtproto.EnvelopeAuthKeyId(packet)
		if err != nil {
			c.logger.Warn("malformed packet", zap.String("remote", c.RemoteAddr()))
			return
		}
		if keyId == 0 {
			if err := c.dh.ProcessPlainPacket(packet); err != nil {
				c.logger.Info("handshake failed",
					zap.String("remote", c.RemoteAddr()), zap.Error(err))
				c.sendKeyError()
				return
			}
			if c.dh.State() == DhStateSucceeded {
				metricHandshakes.Inc()
			}
			continue
		}
		if !c.processAuthKey(keyId) {
			return
		}
		if err := c.rpc.ProcessPacket(packet); err != nil {
			// Fatal for the connection; the session itself survives and
			// may be rebound by a reconnect.
			c.logger.Warn("connection failed",
				zap.String("remote", c.RemoteAddr()), zap.Error(err))
			return
		}
	}
}

// processAuthKey accepts the envelope's auth key id, looking the key up
// in the registry when this connection has none bound yet. An unknown
// or conflicting id gets the key-error frame and kills the connection.
func (c *Connection) processAuthKey(authKeyId int64) bool {
	if c.helper.AuthKeyId() == authKeyId {
		return true
	}
	if c.helper.HasAuthKey() {
		c.logger.Info("auth key id differs from the bound one",
			zap.String("remote", c.RemoteAddr()),
			zap.Int64("auth_key_id", authKeyId))
	} else {
		key := c.api.GetAuthKeyById(authKeyId)
		if key != nil {
			c.logger.Info("attach existing auth key",
				zap.String("remote", c.RemoteAddr()),
				zap.Int64("auth_key_id", authKeyId))
			if err := c.helper.SetAuthKey(key); err == nil {
				c.helper.SetServerSalt(c.api.CurrentServerSalt())
				return true
			}
		}
		c.logger.Info("unknown auth key id",
			zap.String("remote", c.RemoteAddr()),
			zap.Int64("auth_key_id", authKeyId))
	}
	c.sendKeyError()
	return false
}

func (c *Connection) sendKeyError() {
	_ = c.transport.WritePacket(transport.KeyErrorPacket)
}

func (c *Connection) ackLoop() {
	rpc := c.rpc
	ticker := time.NewTicker(ackFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			rpc.FlushAcks()
		}
	}
}

// sessionDetached is called when another connection takes over this
// connection's session; the old transport closes.
func (c *Connection) sessionDetached() {
	c.logger.Info("session rebound elsewhere, closing",
		zap.String("remote", c.RemoteAddr()))
	_ = c.transport.Close()
}

func (c *Connection) teardown() {
	close(c.done)
	c.rpc.Detach()
	c.rpc = nil
	c.dh = nil
	c.helper = nil
	_ = c.transport.Close()
	metricConnections.Dec()
}
