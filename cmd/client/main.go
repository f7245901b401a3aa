// Command client is a minimal terminal client for the chat server. Every
// line typed is sent verbatim; every line received is printed. Typing
// "exit" disconnects.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

func main() {
	addr := flag.String("addr", "localhost:3000", "Chat server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	fmt.Println("connected")

	if err := run(conn, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}
}

// run pumps server output to out and operator input to conn until the
// operator types exit, input ends, or the server hangs up.
func run(conn net.Conn, in io.Reader, out io.Writer) error {
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		_, _ = io.Copy(out, conn)
	}()

	inputDone := make(chan error, 1)
	go func() {
		inputDone <- pumpInput(conn, in, out)
	}()

	var err error
	select {
	case err = <-inputDone:
	case <-serverDone:
		fmt.Fprintln(out, "server closed the connection")
	}

	_ = conn.Close()
	<-serverDone
	return err
}

func pumpInput(conn net.Conn, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if isExit(line) {
			fmt.Fprintln(out, "exiting...")
			return nil
		}
		if _, err := io.WriteString(conn, line+"\n"); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	return scanner.Err()
}

func isExit(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), "exit")
}
