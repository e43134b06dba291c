// Package scanclient streams camera frames to a remote scalpscan server and
// relays the session updates back.
package scanclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-scalpscan/internal/httpc"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

// ErrClosed is returned when the server closes the stream without a
// terminal update.
var ErrClosed = errors.New("scanclient: stream closed before the session ended")

// Client talks to one server.
type Client struct {
	baseURL string
	quality int
	logger  *slog.Logger

	// OnUpdate is called for every update, in order.
	OnUpdate func(u scan.Update)

	// OnOverlay receives overlay PNGs when the server's profile enables them.
	OnOverlay func(png []byte)
}

// New creates a client for the server at baseURL (http or https).
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		quality: 85,
		logger:  logger.With("component", "scanclient"),
	}
}

// CreateSession creates a session on the server, optionally restricted to
// the given step IDs, and returns its ID.
func (c *Client) CreateSession(ctx context.Context, steps []string) (string, error) {
	body, _ := json.Marshal(map[string][]string{"steps": steps})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("scanclient: create session: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("scanclient: create session: %d %s", resp.StatusCode, data)
	}

	var info struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("scanclient: create session: %w", err)
	}
	return info.ID, nil
}

// Stream sends frames to the session until the server reports a terminal
// update, and returns the captured photos. Cancelling ctx closes the
// connection, which cancels the remote session.
func (c *Client) Stream(ctx context.Context, sessionID string, frames <-chan scan.Frame) ([]scan.CapturedPhoto, error) {
	wsURL, err := c.wsURL("/ws/scan/" + url.PathEscape(sessionID))
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("scanclient: connect: %w", err)
	}
	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { ws.Close() }) }
	defer closeConn()

	sendCtx, stopSend := context.WithCancel(ctx)
	defer stopSend()
	go c.send(sendCtx, ws, frames)

	go func() {
		<-sendCtx.Done()
		if ctx.Err() != nil {
			closeConn()
		}
	}()

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseNormalClosure {
				return nil, fmt.Errorf("scanclient: server closed stream: %s", ce.Text)
			}
			return nil, ErrClosed
		}

		if mt == websocket.BinaryMessage {
			if len(data) > 1 && data[0] == 'O' && c.OnOverlay != nil {
				c.OnOverlay(data[1:])
			}
			continue
		}

		var u scan.Update
		if err := json.Unmarshal(data, &u); err != nil {
			c.logger.Debug("ignoring malformed update", "error", err)
			continue
		}
		if c.OnUpdate != nil {
			c.OnUpdate(u)
		}

		switch u.Kind {
		case scan.UpdateComplete:
			return u.Photos, nil
		case scan.UpdateCancelled:
			return nil, scan.ErrCancelled
		case scan.UpdateError:
			return nil, fmt.Errorf("scanclient: %s", u.Error)
		}
	}
}

// send encodes frames as JPEG binary messages. It is the only writer.
func (c *Client) send(ctx context.Context, ws *websocket.Conn, frames <-chan scan.Frame) {
	for {
		select {
		case <-ctx.Done():
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			data, err := c.encode(f)
			if err != nil {
				c.logger.Debug("skipping frame", "seq", f.Seq, "error", err)
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}
}

func (c *Client) encode(f scan.Frame) ([]byte, error) {
	if len(f.JPEG) > 0 {
		return f.JPEG, nil
	}
	if f.Image == nil {
		return nil, errors.New("frame has no image")
	}
	return encodeJPEG(f.Image, c.quality)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Client) wsURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("scanclient: bad server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("scanclient: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
