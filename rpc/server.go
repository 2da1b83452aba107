/*
	This file implements command messaging between the seisvol CLI and a
	running server using gorpc.
*/

package rpc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/valyala/gorpc"

	"github.com/openseis/seisvol/seisvol"
)

const (
	// The default address for command messaging to a seisvol server
	DefaultAddress = "localhost:8001"
)

var (
	// dispatcher provides wrapper to route calls.
	dispatcher *gorpc.Dispatcher

	// servers assigned to different ports
	servers   map[string]*gorpc.Server
	serversMu sync.Mutex

	// handler executes commands received from clients.
	handler   CommandHandler
	handlerMu sync.RWMutex
)

var (
	ErrNoServerRunning     = errors.New("no servers are running")
	ErrServerNotFound      = errors.New("server not found")
	ErrClientUninitialized = errors.New("client not initialized")
	ErrNoHandler           = errors.New("no command handler registered on server")
)

var sendCommand = "Command"

func init() {
	d := gorpc.NewDispatcher()
	d.AddFunc(sendCommand, doCommand)
	dispatcher = d

	var c Command
	gorpc.RegisterType(c)
}

func Dispatcher() *gorpc.Dispatcher {
	return dispatcher
}

// Command is a command line sent to the server: a name followed by arguments.
type Command []string

// Name returns the first word of the command or "" if it is empty.
func (cmd Command) Name() string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0]
}

// Args returns the words after the command name.
func (cmd Command) Args() []string {
	if len(cmd) < 2 {
		return nil
	}
	return cmd[1:]
}

// Argument returns the i-th argument or "" if there are too few.
func (cmd Command) Argument(i int) string {
	args := cmd.Args()
	if i < 0 || i >= len(args) {
		return ""
	}
	return args[i]
}

// CommandHandler runs a command on the server and returns text for the client.
type CommandHandler func(Command) (string, error)

// RegisterCommandHandler sets the function that services all commands.
func RegisterCommandHandler(h CommandHandler) {
	handlerMu.Lock()
	handler = h
	handlerMu.Unlock()
}

func doCommand(cmd Command) (string, error) {
	handlerMu.RLock()
	h := handler
	handlerMu.RUnlock()
	if h == nil {
		return "", ErrNoHandler
	}
	if cmd.Name() == "" {
		return "", fmt.Errorf("server error: got empty command")
	}
	seisvol.Debugf("rpc command: %v\n", []string(cmd))
	return h(cmd)
}

// StartServer starts an RPC server listening on the given address.  It
// returns once the listener is bound.
func StartServer(address string) error {
	gorpc.SetErrorLogger(seisvol.Errorf) // Send gorpc errors to appropriate error log.

	s := gorpc.NewTCPServer(address, dispatcher.NewHandlerFunc())
	if err := s.Start(); err != nil {
		return err
	}
	serversMu.Lock()
	if servers == nil {
		servers = make(map[string]*gorpc.Server)
	}
	servers[address] = s
	serversMu.Unlock()
	seisvol.Infof("RPC server listening on %s\n", address)
	return nil
}

// StopServer halts the given server.
func StopServer(address string) error {
	serversMu.Lock()
	defer serversMu.Unlock()
	if servers == nil {
		return ErrNoServerRunning
	}
	s, found := servers[address]
	if !found {
		return ErrServerNotFound
	}
	delete(servers, address)
	s.Stop()
	return nil
}

// Shutdown halts all RPC servers.
func Shutdown() {
	serversMu.Lock()
	defer serversMu.Unlock()
	for _, s := range servers {
		s.Stop()
	}
	seisvol.Infof("Halted %d RPC servers.\n", len(servers))
	servers = nil
}
