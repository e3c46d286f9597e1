package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			ctl.writeClose(c)
			return
		case data, ok := <-c.send:
			if !ok {
				ctl.writeClose(c)
				return
			}
			if err := ctl.write(c, websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := ctl.write(c, websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) write(c *WsSignalConn, mt int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(mt, data)
}

func (ctl *SignalWSController) writeClose(c *WsSignalConn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(ctl.Cfg.WriteTimeout))
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, cc *core.Connection, c *WsSignalConn) {
	sid := cc.SID()
	defer func() {
		ctl.Orch.OnDisconnect(cc)
		ctl.Orch.Registry.Unbind(sid)
		c.Close()
		cancel()
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		if err := ctl.Orch.Handle(ctx, cc, data); err != nil {
			ev := log.Debug()
			if !errors.Is(err, domain.ErrMalformedMessage) && !errors.Is(err, domain.ErrNotJoined) {
				ev = log.Info()
			}
			ev.Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("frame not applied")
		}
	}
}
