package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subscribe streams status reports for a job. The channel closes after a
// terminal status, when the connection drops, or when ctx is done.
func (c *Client) Subscribe(ctx context.Context, jobID string) (<-chan JobStatus, error) {
	target, err := c.eventsURL(jobID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.Timeout}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", jobID, err)
	}

	out := make(chan JobStatus, 8)
	go c.readStatus(ctx, conn, jobID, out)
	return out, nil
}

func (c *Client) readStatus(ctx context.Context, conn *websocket.Conn, jobID string, out chan<- JobStatus) {
	defer close(out)
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Debug("status stream closed", zap.String("job_id", jobID), zap.Error(err))
			}
			return
		}

		var st JobStatus
		if err := sonic.Unmarshal(data, &st); err != nil {
			c.logger.Debug("malformed status message", zap.String("job_id", jobID), zap.Error(err))
			continue
		}
		if st.JobID == "" {
			st.JobID = jobID
		}

		select {
		case out <- st:
		case <-ctx.Done():
			return
		}

		if st.State.Terminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}
	}
}
