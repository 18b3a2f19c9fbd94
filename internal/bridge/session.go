package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/whallera/whallera/internal/logging"
	"github.com/whallera/whallera/internal/protocol"
	"github.com/whallera/whallera/internal/transport"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Idle sessions are dropped after this long without a request
	idleTimeout = 5 * time.Minute

	// Requests larger than this are refused
	maxMessageSize = 1 << 17

	// Control frame payloads are limited to 125 bytes, two of them the code
	maxCloseReason = 123
)

// Rejection reasons used as the rejected_total label
const (
	rejectNotBinary   = "not_binary"
	rejectBadFrame    = "bad_frame"
	rejectRateLimited = "rate_limited"
)

// session owns the device for the lifetime of one WebSocket connection
type session struct {
	id      string
	conn    *websocket.Conn
	device  transport.Transport
	timeout time.Duration
	limiter *rate.Limiter
	metrics *Metrics
	logger  *zap.Logger
}

func newSession(conn *websocket.Conn, device transport.Transport, cfg *Config, metrics *Metrics) *session {
	id := uuid.NewString()

	var limiter *rate.Limiter
	if cfg.CommandsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.CommandsPerSecond), cfg.Burst)
	}

	return &session{
		id:      id,
		conn:    conn,
		device:  device,
		timeout: cfg.DeviceTimeout,
		limiter: limiter,
		metrics: metrics,
		logger: logging.GetLogger().With(
			zap.String("session", id),
			zap.String("remote_addr", conn.RemoteAddr().String()),
		),
	}
}

// serve relays request frames until the client leaves, ctx is cancelled, or
// the device fails. Each message is handled to completion before the next
// is read, so the device never sees interleaved commands.
func (s *session) serve(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	s.logger.Info("Session started")
	defer s.logger.Info("Session ended")

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}

		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("Connection closed with error", zap.Error(err))
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			s.reject(rejectNotBinary, websocket.CloseUnsupportedData, "binary frames only")
			return
		}

		req, err := protocol.DecodeRequest(data)
		if err != nil {
			s.logger.Warn("Invalid request frame", zap.Error(err))
			logging.LogRawBytes(s.logger, "Invalid request frame bytes", data)
			s.reject(rejectBadFrame, websocket.ClosePolicyViolation, protocol.ShortErrorMessage(err))
			return
		}

		if s.limiter != nil && !s.limiter.Allow() {
			s.reject(rejectRateLimited, websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		if err := s.relay(ctx, req); err != nil {
			s.logger.Error("Relay failed", zap.Error(err))
			s.close(websocket.CloseInternalServerErr, "device error")
			return
		}
	}
}

// relay sends one request to the device and forwards whatever it answers.
// A silent device is reported to the client as an empty binary message.
func (s *session) relay(ctx context.Context, req *protocol.Request) error {
	s.metrics.Frames.WithLabelValues(req.Command.String()).Inc()
	logging.LogFrame(s.logger, "relay tx", s.device.String(), req.Raw)

	if err := s.device.Write(ctx, req.Raw); err != nil {
		s.metrics.DeviceErrors.Inc()
		return err
	}

	reply, err := s.device.ReadAvailable(ctx, s.timeout)
	switch {
	case protocol.IsTimeoutError(err):
		s.metrics.DeviceTimeouts.Inc()
		s.logger.Debug("Device did not answer",
			zap.Stringer("cmd", req.Command),
			zap.Duration("timeout", s.timeout),
		)
		reply = nil
	case errors.Is(err, context.Canceled):
		return err
	case err != nil:
		s.metrics.DeviceErrors.Inc()
		return err
	default:
		logging.LogFrame(s.logger, "relay rx", s.device.String(), reply)
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, reply)
}

func (s *session) reject(reason string, code int, text string) {
	s.metrics.Rejected.WithLabelValues(reason).Inc()
	s.logger.Warn("Rejected client message", zap.String("reason", reason))
	s.close(code, text)
}

func (s *session) close(code int, text string) {
	if len(text) > maxCloseReason {
		text = text[:maxCloseReason]
	}
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
