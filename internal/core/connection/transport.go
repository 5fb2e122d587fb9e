package connection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"voice-assistant-go/internal/platform/errors"
)

// Transport moves encoded requests to the assistant backend and delivers
// every inbound response through the handler given to Connect, regardless
// of the underlying protocol.
type Transport interface {
	Connect(ctx context.Context, onResponse func(Response), onError func(error)) error
	Send(ctx context.Context, req SpeechRequest) error
	Close() error
}

// NewTransport selects a transport from the server URL scheme.
func NewTransport(serverURL string, timeout time.Duration) (Transport, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfig, "transport.new", "invalid server url", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		return newWebsocketTransport(serverURL, timeout), nil
	case "http", "https":
		return newHTTPTransport(serverURL, timeout), nil
	default:
		return nil, errors.New(errors.KindConfig, "transport.new",
			fmt.Sprintf("unsupported server url scheme: %s", u.Scheme))
	}
}

// websocketTransport keeps one persistent connection and a background
// reader that feeds inbound responses to the handler.
type websocketTransport struct {
	url     string
	timeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

func newWebsocketTransport(url string, timeout time.Duration) *websocketTransport {
	return &websocketTransport{url: url, timeout: timeout}
}

func (t *websocketTransport) Connect(ctx context.Context, onResponse func(Response), onError func(error)) error {
	dialer := websocket.Dialer{HandshakeTimeout: t.timeout}
	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return errors.Wrap(errors.KindTransport, "transport.connect", "websocket dial failed", err)
	}

	readerCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
	}
	t.conn = conn
	t.cancel = cancel
	t.mu.Unlock()

	go t.readLoop(readerCtx, conn, onResponse, onError)
	return nil
}

func (t *websocketTransport) readLoop(ctx context.Context, conn *websocket.Conn, onResponse func(Response), onError func(error)) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				onError(errors.Wrap(errors.KindTransport, "transport.read", "websocket read failed", err))
			}
			return
		}

		var resp Response
		if err := sonic.Unmarshal(data, &resp); err != nil {
			onError(errors.Wrap(errors.KindProtocol, "transport.read", "malformed response payload", err))
			continue
		}
		onResponse(resp)
	}
}

func (t *websocketTransport) Send(ctx context.Context, req SpeechRequest) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New(errors.KindTransport, "transport.send", "websocket not connected")
	}

	data, err := sonic.Marshal(req)
	if err != nil {
		return errors.Wrap(errors.KindProtocol, "transport.send", "failed to encode request", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	} else {
		conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(errors.KindTransport, "transport.send", "websocket write failed", err)
	}
	return nil
}

func (t *websocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// httpTransport trades the persistent socket for request/response POSTs.
// Responses still flow through the inbound handler so the correlation
// path is identical for both protocols.
type httpTransport struct {
	base    string
	client  *http.Client
	timeout time.Duration

	mu         sync.Mutex
	onResponse func(Response)
}

func newHTTPTransport(base string, timeout time.Duration) *httpTransport {
	return &httpTransport{
		base:    strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (t *httpTransport) Connect(ctx context.Context, onResponse func(Response), _ func(error)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.base+"/health", nil)
	if err != nil {
		return errors.Wrap(errors.KindTransport, "transport.connect", "failed to build health request", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.KindTransport, "transport.connect", "health check failed", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.KindTransport, "transport.connect",
			fmt.Sprintf("health check returned status %d", resp.StatusCode))
	}

	t.mu.Lock()
	t.onResponse = onResponse
	t.mu.Unlock()
	return nil
}

func (t *httpTransport) Send(ctx context.Context, req SpeechRequest) error {
	t.mu.Lock()
	handler := t.onResponse
	t.mu.Unlock()
	if handler == nil {
		return errors.New(errors.KindTransport, "transport.send", "http transport not connected")
	}

	data, err := sonic.Marshal(req)
	if err != nil {
		return errors.Wrap(errors.KindProtocol, "transport.send", "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/api/process", bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(errors.KindTransport, "transport.send", "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return errors.Wrap(errors.KindTransport, "transport.send", "http post failed", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return errors.Wrap(errors.KindTransport, "transport.send", "failed to read response body", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return errors.New(errors.KindTransport, "transport.send",
			fmt.Sprintf("server returned status %d", httpResp.StatusCode))
	}

	var resp Response
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return errors.Wrap(errors.KindProtocol, "transport.send", "malformed response payload", err)
	}
	if resp.RequestID == "" {
		resp.RequestID = req.RequestID
	}
	handler(resp)
	return nil
}

func (t *httpTransport) Close() error {
	t.mu.Lock()
	t.onResponse = nil
	t.mu.Unlock()
	t.client.CloseIdleConnections()
	return nil
}
