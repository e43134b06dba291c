package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-scalpscan/pkg/facemesh"
	"github.com/teslashibe/go-scalpscan/pkg/hub"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

const (
	scanWriteWait   = 10 * time.Second
	scanMaxFrame    = 4 * 1024 * 1024
	frameBuffer     = 2
	overlayBuffer   = 2
	overlayFrameTag = 'O'
)

// FrameMessage is a text frame sent by browser clients that run their own
// face mesh. Image is a data URI or bare base64 JPEG. When Detection is
// true, Mesh is authoritative and an empty mesh means no face.
type FrameMessage struct {
	Seq       uint64           `json:"seq"`
	Image     string           `json:"image"`
	Mesh      []facemesh.Point `json:"mesh,omitempty"`
	Detection bool             `json:"detection"`
}

// Frame converts the message into a scan frame.
func (m *FrameMessage) Frame() (scan.Frame, error) {
	_, data, err := scan.DecodeDataURI(m.Image)
	if err != nil {
		return scan.Frame{}, err
	}
	f := scan.Frame{
		Seq:               m.Seq,
		Timestamp:         time.Now(),
		JPEG:              data,
		DetectionIncluded: m.Detection,
	}
	if m.Detection {
		f.Landmarks = facemesh.FromMesh(m.Mesh)
	}
	return f, nil
}

// handleScanWS streams frames from the client into a capture session and
// sends updates back as JSON text messages. Overlay layers are sent as
// binary PNG messages prefixed with 'O'. Disconnecting cancels the session.
func (s *Server) handleScanWS(c *websocket.Conn) {
	id := c.Params("id")
	logger := s.logger.With("session_id", id)

	e, err := s.sessions.get(id)
	if err != nil {
		closeWithError(c, websocket.ClosePolicyViolation, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan scan.Frame, frameBuffer)
	overlays := make(chan []byte, overlayBuffer)

	updates, err := s.startStream(ctx, e, frames, overlaySink(overlays))
	if err != nil {
		logger.Warn("scan stream rejected", "error", err)
		closeWithError(c, websocket.ClosePolicyViolation, err.Error())
		return
	}
	s.events.Publish(hub.EventSessionStarted, id, fiber.Map{"steps": len(e.steps)})

	go s.readFrames(ctx, c, frames, cancel)

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				c.SetWriteDeadline(time.Now().Add(scanWriteWait))
				c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if u.Kind == scan.UpdateComplete {
				e.complete(u.Photos)
			}
			if err := writeUpdate(c, u); err != nil {
				logger.Debug("scan client write failed", "error", err)
				cancel()
				continue
			}
			s.publishUpdate(id, u)

		case layer := <-overlays:
			c.SetWriteDeadline(time.Now().Add(scanWriteWait))
			if err := c.WriteMessage(websocket.BinaryMessage, layer); err != nil {
				cancel()
			}
		}
	}
}

// readFrames forwards client frames in order until the connection closes,
// then cancels the session. When the session is behind, reads stop and the
// connection applies backpressure to the client.
func (s *Server) readFrames(ctx context.Context, c *websocket.Conn, frames chan<- scan.Frame, cancel context.CancelFunc) {
	defer cancel()
	c.SetReadLimit(scanMaxFrame)

	var seq uint64
	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		seq++

		var f scan.Frame
		switch mt {
		case websocket.BinaryMessage:
			f = scan.Frame{Seq: seq, Timestamp: time.Now(), JPEG: data}
		case websocket.TextMessage:
			var msg FrameMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg.Seq == 0 {
				msg.Seq = seq
			}
			if f, err = msg.Frame(); err != nil {
				continue
			}
		default:
			continue
		}

		select {
		case frames <- f:
		case <-ctx.Done():
			return
		}
	}
}

func writeUpdate(c *websocket.Conn, u scan.Update) error {
	c.SetWriteDeadline(time.Now().Add(scanWriteWait))
	return c.WriteJSON(u)
}

// publishUpdate mirrors state changes to the dashboard without image data.
func (s *Server) publishUpdate(id string, u scan.Update) {
	switch u.Kind {
	case scan.UpdateFrame:
		if u.Seq%10 != 0 {
			return
		}
	case scan.UpdateComplete, scan.UpdateCancelled, scan.UpdateError:
		s.events.Publish(hub.EventSessionEnded, id, fiber.Map{"reason": u.Kind, "error": u.Error})
		return
	}
	u.Photo = nil
	u.Photos = nil
	s.events.Publish(hub.EventSessionUpdate, id, u)
}

// overlaySink encodes overlay layers as tagged PNGs, dropping layers when
// the writer is behind.
func overlaySink(out chan<- []byte) scan.OverlaySink {
	return func(seq uint64, layer *image.RGBA) {
		var buf bytes.Buffer
		buf.WriteByte(overlayFrameTag)
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(&buf, layer); err != nil {
			return
		}
		select {
		case out <- buf.Bytes():
		default:
		}
	}
}

func closeWithError(c *websocket.Conn, code int, msg string) {
	c.SetWriteDeadline(time.Now().Add(scanWriteWait))
	c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, msg))
}
