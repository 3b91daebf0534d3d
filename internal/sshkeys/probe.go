package sshkeys

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

const probeTimeout = 5 * time.Second

var ErrProbeFailed = fmt.Errorf("ssh connection probe failed")

// Probe performs a single short-timeout SSH handshake against host:port and
// immediately closes the connection. It answers exactly one question: is
// this host reachable and does it accept our key. Host keys are not checked;
// the instance was just created and its key is unknown by construction.
func Probe(host string, port uint16, user string, signer ssh.Signer) error {
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         probeTimeout,
	}
	target := net.JoinHostPort(host, strconv.Itoa(int(port)))
	client, err := ssh.Dial("tcp", target, config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	return client.Close()
}
