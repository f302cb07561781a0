package remote

import (
	"context"
	"io/ioutil"
	"net"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig carries everything needed to open the transport. Host may be
// given as "user@host" or "user@host:port"; explicit fields win over the
// host string.
type SSHConfig struct {
	Host           string `yaml:"host"`
	User           string `yaml:"user"`
	Port           string `yaml:"port"`
	KeyFile        string `yaml:"key_file"`
	KnownHostsFile string `yaml:"known_hosts"`
}

// SSHExecutor runs commands over a single SSH connection, one session
// per command.
type SSHExecutor struct {
	client *ssh.Client
}

// DialSSH opens the SSH connection described by cfg.
func DialSSH(cfg SSHConfig) (*SSHExecutor, error) {
	user, host, port := splitHost(cfg)

	key, err := ioutil.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ssh key")
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse ssh key")
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		if hostKeys, err = knownhosts.New(cfg.KnownHostsFile); err != nil {
			return nil, errors.Wrap(err, "failed to load known hosts")
		}
	}

	client, err := ssh.Dial("tcp", net.JoinHostPort(host, port), &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", host)
	}

	return &SSHExecutor{client: client}, nil
}

func (e *SSHExecutor) Exec(ctx context.Context, command string) (string, error) {
	sess, err := e.client.NewSession()
	if err != nil {
		return "", errors.Wrap(err, "failed to open ssh session")
	}
	defer sess.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sess.Close()
		case <-done:
		}
	}()

	out, err := sess.CombinedOutput(command)
	if err != nil {
		return "", &CommandError{Command: command, Output: string(out), Err: err}
	}

	return string(out), nil
}

func (e *SSHExecutor) Close() error {
	return e.client.Close()
}

func splitHost(cfg SSHConfig) (user, host, port string) {
	host = cfg.Host
	if at := strings.IndexByte(host, '@'); at >= 0 {
		user, host = host[:at], host[at+1:]
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		host, port = h, p
	}

	if cfg.User != "" {
		user = cfg.User
	}
	if cfg.Port != "" {
		port = cfg.Port
	}
	if port == "" {
		port = "22"
	}
	if user == "" {
		user = "deploy"
	}
	return
}
