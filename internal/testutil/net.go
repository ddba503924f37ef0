/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// GetLocalAddrWithFreeTCPPort returns a 127.0.0.1:<port> address whose port
// nobody is listening on. The port is found by binding an ephemeral listener
// and closing it right away.
func GetLocalAddrWithFreeTCPPort() string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	if err := listener.Close(); err != nil {
		panic(err)
	}
	return fmt.Sprintf("127.0.0.1:%d", port)
}

// WaitListeningServer polls the address until a TCP connection succeeds or the
// timeout expires.
func WaitListeningServer(addr string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
			return conn.Close()
		}
		select {
		case <-timer.C:
			return errors.New("waiting listening server timed out")
		default:
			time.Sleep(time.Millisecond * 10)
		}
	}
}
