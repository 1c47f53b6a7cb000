package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client is the wayvidctl side of the protocol. Not safe for concurrent
// use; the CLI issues one request at a time.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
	enc  *json.Encoder
}

// Dial connects to the daemon's control socket.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to %s (is wayvid running?): %w", path, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), enc: json.NewEncoder(conn)}, nil
}

// Do sends one request and reads its response.
func (c *Client) Do(cmd Command, params any) (Response, error) {
	req := Request{Command: cmd}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return Response{}, err
		}
		req.Params = raw
	}
	_ = c.conn.SetDeadline(time.Now().Add(5 * time.Second))
	if err := c.enc.Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Close drops the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
