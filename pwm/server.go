// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pwm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
)

// server allows remote control of a PWM device.
type server struct {
	ctl net.Listener

	msg *log.Logger
	dev *Device
}

// Serve listens on addr and handles remote state/apply requests for
// the given device until ctx is cancelled. Requests and replies are
// newline-free JSON documents; see the handle method for the protocol.
func Serve(ctx context.Context, addr string, dev *Device) error {
	srv, err := newServer(addr, dev)
	if err != nil {
		return fmt.Errorf("could not create ptc server: %w", err)
	}
	return srv.serve(ctx)
}

func newServer(addr string, dev *Device) (*server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("pwm: could not listen on %q: %w", addr, err)
	}

	srv := &server{
		ctl: ctl,
		msg: log.New(os.Stdout, "ptc-srv: ", 0),
		dev: dev,
	}
	return srv, nil
}

func (srv *server) addr() string { return srv.ctl.Addr().String() }

func (srv *server) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		<-ctx.Done()
		// Unblock Accept.
		return srv.ctl.Close()
	})

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("pwm: could not accept connection: %w", err)
		}

		grp.Go(func() error {
			err := srv.handle(ctx, conn)
			if err != nil {
				srv.msg.Printf("could not serve %v: %+v", conn.RemoteAddr(), err)
			}
			return nil
		})
	}

	return grp.Wait()
}

func (srv *server) handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	dec := json.NewDecoder(conn)
loop:
	for {
		if ctx.Err() != nil {
			break loop
		}

		var req struct {
			Name    string `json:"name"`
			Channel int    `json:"channel"`
			State   *State `json:"state,omitempty"`
		}

		err := dec.Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			srv.msg.Printf("could not decode command request: %+v", err)
			srv.reply(conn, nil, "", err)
			continue
		}
		srv.msg.Printf("received request: name=%q channel=%d", req.Name, req.Channel)

		switch strings.ToLower(req.Name) {
		case "state":
			state, err := srv.dev.State(req.Channel)
			if err != nil {
				srv.msg.Printf("could not read channel %d state: %+v", req.Channel, err)
				srv.reply(conn, nil, "", err)
				continue
			}
			srv.reply(conn, &state, "", nil)

		case "apply":
			if req.State == nil {
				srv.reply(conn, nil, "", fmt.Errorf("pwm: missing state payload"))
				continue
			}
			err := srv.dev.Apply(req.Channel, *req.State)
			if err != nil {
				srv.msg.Printf("could not apply channel %d state: %+v", req.Channel, err)
			}
			srv.reply(conn, nil, "", err)

		case "dump":
			buf := new(bytes.Buffer)
			err := srv.dev.DumpRegisters(buf)
			if err != nil {
				srv.msg.Printf("could not dump registers: %+v", err)
				srv.reply(conn, nil, "", err)
				continue
			}
			srv.reply(conn, nil, buf.String(), nil)

		case "quit":
			srv.reply(conn, nil, "", nil)
			break loop

		default:
			srv.reply(conn, nil, "", fmt.Errorf("pwm: unknown command %q", req.Name))
		}
	}

	return nil
}

func (srv *server) reply(conn net.Conn, state *State, dump string, err error) {
	rep := struct {
		Msg   string `json:"msg"`
		State *State `json:"state,omitempty"`
		Dump  string `json:"dump,omitempty"`
	}{
		Msg:   "ok",
		State: state,
		Dump:  dump,
	}
	if err != nil {
		rep.Msg = err.Error()
	}

	e := json.NewEncoder(conn).Encode(rep)
	if e != nil {
		srv.msg.Printf("could not send reply: %+v", e)
	}
}
