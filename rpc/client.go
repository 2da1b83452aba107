package rpc

import (
	"fmt"

	"github.com/valyala/gorpc"
)

// Client sends commands to a remote seisvol server.
type Client struct {
	c  *gorpc.Client
	dc *gorpc.DispatcherClient
}

// NewClient returns a started client for the given address.  Connection
// errors surface on the first Send.
func NewClient(addr string) (*Client, error) {
	c := gorpc.NewTCPClient(addr)
	c.Start()
	dc := dispatcher.NewFuncClient(c)
	if dc == nil {
		c.Stop()
		return nil, fmt.Errorf("can't create dispatcher client")
	}
	return &Client{c, dc}, nil
}

// Send runs the command on the server and returns its text reply.
func (c *Client) Send(cmd Command) (string, error) {
	if c == nil || c.dc == nil {
		return "", ErrClientUninitialized
	}
	resp, err := c.dc.Call(sendCommand, cmd)
	if err != nil {
		return "", fmt.Errorf("rpc error for %q: %v", cmd.Name(), err)
	}
	text, ok := resp.(string)
	if !ok {
		return "", fmt.Errorf("remote server returned %v instead of text", resp)
	}
	return text, nil
}

// Close stops the client.
func (c *Client) Close() {
	if c != nil && c.c != nil {
		c.c.Stop()
	}
}
