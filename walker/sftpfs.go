package walker

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/justin-molloy/mediawatch/config"
)

// SFTPFS browses a remote host over SFTP. Remote paths are always
// slash-separated, whatever the local OS.
type SFTPFS struct {
	conn   *ssh.Client
	client *sftp.Client
}

// DialSFTP connects to a configured remote. The caller must Close it.
func DialSFTP(remote config.RemoteEntry) (*SFTPFS, error) {
	auth, err := authMethods(remote)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyCallback(remote)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            remote.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(remote.Server, remote.Port)
	conn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("SSH dial failed: %w", err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SFTP client creation failed: %w", err)
	}

	slog.Debug("Connected to remote", "name", remote.Name, "addr", addr)
	return &SFTPFS{conn: conn, client: client}, nil
}

func authMethods(remote config.RemoteEntry) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if strings.TrimSpace(remote.PrivateKey) != "" {
		key, err := os.ReadFile(remote.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("unable to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if remote.Password != "" {
		methods = append(methods, ssh.Password(remote.Password))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("remote %q has neither privatekey nor password", remote.Name)
	}
	return methods, nil
}

func hostKeyCallback(remote config.RemoteEntry) (ssh.HostKeyCallback, error) {
	if strings.TrimSpace(remote.KnownHosts) == "" {
		slog.Warn("Host key checking disabled for remote", "name", remote.Name)
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(remote.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("unable to load known_hosts: %w", err)
	}
	return cb, nil
}

func (s *SFTPFS) ReadDirNames(name string) ([]string, error) {
	infos, err := s.client.ReadDir(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

func (s *SFTPFS) Stat(name string) (fs.FileInfo, error) {
	return s.client.Stat(name)
}

func (s *SFTPFS) Join(elem ...string) string {
	return path.Join(elem...)
}

func (s *SFTPFS) Close() error {
	err := s.client.Close()
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
